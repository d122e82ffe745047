package resolve

import (
	"context"
	"fmt"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// Report is the diagnostic view of one target: its layered input and,
// optionally, the outcome of resolving it.
type Report struct {
	Target      string                   `json:"target"`
	RuleKind    string                   `json:"rule_kind,omitempty"`
	Ancestors   []LayerView              `json:"ancestors"`
	TargetScope []LayerView              `json:"target_scope"`
	CommandLine []LayerView              `json:"command_line"`
	Legacy      constraint.Configuration `json:"legacy"`

	Configuration *constraint.Configuration `json:"configuration,omitempty"`
	Trace         *Trace                    `json:"trace,omitempty"`
	// Error holds the resolution failure when a trace was requested and
	// resolution did not succeed.
	Error string `json:"error,omitempty"`
}

// LayerView is a printable modifier layer.
type LayerView struct {
	Scope   string               `json:"scope"`
	Setting constraint.Setting   `json:"setting"`
	Expr    string               `json:"expr"`
	Reads   []constraint.Setting `json:"reads,omitempty"`
	Source  string               `json:"source,omitempty"`
}

// Audit collects the layers of t. With trace set it also resolves them and
// attaches the configuration and trace, or the resolution error.
func (r *Resolver) Audit(ctx context.Context, t layer.Target, cli []modifier.Declaration, trace bool) (*Report, error) {
	layers, err := r.Collector.Collect(ctx, t, cli)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Label, err)
	}

	rep := &Report{
		Target:      t.Label,
		RuleKind:    t.RuleKind,
		Ancestors:   views(layers.ByScope(layer.ScopeAncestor)),
		TargetScope: views(layers.ByScope(layer.ScopeTarget)),
		CommandLine: views(layers.ByScope(layer.ScopeCommandLine)),
		Legacy:      t.Legacy,
	}
	if !trace {
		return rep, nil
	}

	res, err := r.ResolveLayers(ctx, t, layers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		rep.Error = err.Error()
		return rep, nil
	}
	rep.Configuration = &res.Configuration
	rep.Trace = res.Trace
	return rep, nil
}

func views(ls []layer.Layer) []LayerView {
	out := make([]LayerView, 0, len(ls))
	for _, l := range ls {
		out = append(out, LayerView{
			Scope:   l.Scope.String(),
			Setting: l.Decl.Setting(),
			Expr:    modifier.Format(l.Decl.Expr),
			Reads:   l.Decl.Deps.Reads,
			Source:  l.Decl.Expr.Position().String(),
		})
	}
	return out
}
