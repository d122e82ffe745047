// Package resolve turns a target's collected modifier layers into its final
// Configuration.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/ctxlog"
	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/modifier"
	"github.com/sofmeright/cfgmod/src/plan"
)

// ErrMultipleValues signals that an evaluation produced a value for a setting
// other than the one being resolved. Extraction rejects such declarations at
// load time, so seeing it means an internal invariant was broken.
var ErrMultipleValues = errors.New("internal error: multiple values for one constraint setting")

// Resolver holds the invocation-wide, read-only state shared by every
// resolution. Build one per invocation and pass it by reference.
type Resolver struct {
	Catalog   *constraint.Catalog
	Host      constraint.Configuration
	Collector *layer.Collector
	Planner   *plan.Planner
}

// New creates a Resolver. A nil planner gets a fresh cache.
func New(cat *constraint.Catalog, hostSnap constraint.Configuration, source layer.ScopeSource, planner *plan.Planner) *Resolver {
	if planner == nil {
		planner = plan.NewPlanner()
	}
	return &Resolver{
		Catalog:   cat,
		Host:      hostSnap,
		Collector: &layer.Collector{Source: source},
		Planner:   planner,
	}
}

// Result is the outcome of resolving one target.
type Result struct {
	Target        string                   `json:"target"`
	Configuration constraint.Configuration `json:"configuration"`
	Trace         *Trace                   `json:"trace"`
}

// Resolve collects the layers of t and resolves them. cli holds the
// command-line modifiers for this target, already expanded.
func (r *Resolver) Resolve(ctx context.Context, t layer.Target, cli []modifier.Declaration) (*Result, error) {
	layers, err := r.Collector.Collect(ctx, t, cli)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Label, err)
	}
	return r.ResolveLayers(ctx, t, layers)
}

// ResolveLayers resolves already-collected layers. Either a complete
// Configuration is returned or an error; never a partial one.
func (r *Resolver) ResolveLayers(ctx context.Context, t layer.Target, layers *layer.Layers) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx).With("target", t.Label)

	order, err := r.Planner.Plan(layers.Deps())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Label, err)
	}

	var cfg constraint.Configuration
	trace := &Trace{Target: t.Label, RuleKind: t.RuleKind, Order: order}

	for _, s := range order {
		st := SettingTrace{Setting: s, Origin: OriginModifier}
		for _, l := range layers.For(s) {
			env := modifier.Env{Config: cfg, RuleKind: t.RuleKind, Host: r.Host}
			lit, branch, err := modifier.Evaluate(l.Decl.Expr, env)
			if err != nil {
				return nil, fmt.Errorf("%s: resolving %s from %s: %w", t.Label, r.Catalog.ShortName(string(s)), l.Scope, err)
			}
			if lit.Setting != s {
				return nil, fmt.Errorf("%s: %s produced %s for %s: %w", t.Label, l.Scope, lit.Value, s, ErrMultipleValues)
			}
			cfg.Set(s, lit.Value)

			a := Assignment{
				Value:  lit.Value,
				Scope:  l.Scope.String(),
				Source: l.Decl.Expr.Position().String(),
				Branch: branch.String(),
				Expr:   modifier.Format(l.Decl.Expr),
			}
			if st.Applied != nil {
				st.Shadowed = append(st.Shadowed, *st.Applied)
			}
			st.Applied = &a
			log.Debug("assigned", "setting", s, "value", lit.Value, "scope", a.Scope, "branch", a.Branch)
		}
		if st.Applied != nil {
			st.Value = st.Applied.Value
			trace.Settings = append(trace.Settings, st)
		}
	}

	final, filled := MergeLegacy(cfg, t.Legacy)
	for _, s := range filled {
		v, _ := final.Get(s)
		trace.Settings = append(trace.Settings, SettingTrace{Setting: s, Value: v, Origin: OriginLegacy})
		log.Debug("legacy fill-in", "setting", s, "value", v)
	}

	return &Result{Target: t.Label, Configuration: final, Trace: trace}, nil
}

// MergeLegacy combines a resolved configuration with the legacy one. An empty
// resolved configuration yields legacy unchanged; otherwise legacy only fills
// settings the resolution left unset. The filled settings are returned sorted.
func MergeLegacy(resolved, legacy constraint.Configuration) (constraint.Configuration, []constraint.Setting) {
	if resolved.IsEmpty() {
		return legacy.Clone(), legacy.Settings()
	}
	out := resolved.Clone()
	var filled []constraint.Setting
	for _, s := range legacy.Settings() {
		if _, ok := out.Get(s); ok {
			continue
		}
		v, _ := legacy.Get(s)
		out.Set(s, v)
		filled = append(filled, s)
	}
	return out, filled
}
