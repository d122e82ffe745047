// Package host computes the constraint values describing the executing machine.
package host

import (
	"context"
	"runtime"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/ctxlog"
)

// Info holds raw host attributes keyed by attribute name ("os", "arch").
type Info map[string]string

// Detect reads the attributes of the running process.
func Detect() Info {
	return Info{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}
}

// With returns a copy of i with non-empty overrides applied.
func (i Info) With(overrides map[string]string) Info {
	out := make(Info, len(i)+len(overrides))
	for k, v := range i {
		out[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Snapshot maps info through the catalog's host table. Attributes the catalog
// does not map, or runtime values it has no entry for, are skipped.
// The result is never mutated after construction and may be shared freely.
func Snapshot(ctx context.Context, cat *constraint.Catalog, info Info) constraint.Configuration {
	log := ctxlog.FromContext(ctx)

	var snap constraint.Configuration
	for _, attr := range cat.HostAttributes() {
		raw, ok := info[attr]
		if !ok {
			log.Debug("host attribute not detected", "attr", attr)
			continue
		}
		v, ok := cat.HostValue(attr, raw)
		if !ok {
			log.Debug("host attribute unmapped", "attr", attr, "value", raw)
			continue
		}
		s, _ := cat.SettingOf(v)
		snap.Set(s, v)
	}
	return snap
}
