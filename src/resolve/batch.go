package resolve

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/cfgmod/src/ctxlog"
	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// Request is one top-level target with its command-line modifiers.
type Request struct {
	Target      layer.Target
	CommandLine []modifier.Declaration
}

// Outcome is the per-target result of a batch. Exactly one of Result and Err is set.
type Outcome struct {
	Label  string
	Result *Result
	Err    error
}

// ResolveAll resolves every request with at most jobs in flight (jobs <= 0
// means GOMAXPROCS). A failing target never affects the others; outcomes come
// back in request order. The returned error is non-nil only when ctx ended
// before every target ran.
func (r *Resolver) ResolveAll(ctx context.Context, reqs []Request, jobs int) ([]Outcome, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	out := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, req := range reqs {
		out[i].Label = req.Target.Label
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			res, err := r.Resolve(ctx, req.Target, req.CommandLine)
			if err != nil {
				ctxlog.FromContext(ctx).Debug("target failed", "target", req.Target.Label, "error", err)
				out[i].Err = err
				return nil
			}
			out[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

// Failed counts outcomes carrying an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
