package layer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/sofmeright/cfgmod/src/ctxlog"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// ScopeCache memoizes a ScopeSource per directory for one invocation.
// Concurrent callers asking for the same directory share a single in-flight
// computation; later callers get the stored result.
type ScopeCache struct {
	source ScopeSource
	group  singleflight.Group

	mu   sync.RWMutex
	done map[string]scopeResult

	Hits   atomic.Int64
	Misses atomic.Int64
}

type scopeResult struct {
	decls []modifier.Declaration
	err   error
}

// NewScopeCache wraps source.
func NewScopeCache(source ScopeSource) *ScopeCache {
	return &ScopeCache{source: source, done: make(map[string]scopeResult)}
}

// DirectoryModifiers implements ScopeSource.
func (c *ScopeCache) DirectoryModifiers(ctx context.Context, dir string) ([]modifier.Declaration, error) {
	c.mu.RLock()
	r, ok := c.done[dir]
	c.mu.RUnlock()
	if ok {
		c.Hits.Add(1)
		return r.decls, r.err
	}

	ran := false
	v, err, _ := c.group.Do(dir, func() (any, error) {
		ran = true
		c.Misses.Add(1)
		ctxlog.FromContext(ctx).Debug("scope cache miss", "dir", dir)
		decls, err := c.source.DirectoryModifiers(ctx, dir)
		// Cancellation belongs to the caller, not to the directory.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.mu.Lock()
			c.done[dir] = scopeResult{decls: decls, err: err}
			c.mu.Unlock()
		}
		return decls, err
	})
	if !ran {
		c.Hits.Add(1)
	}
	decls, _ := v.([]modifier.Declaration)
	return decls, err
}
