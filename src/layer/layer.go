// Package layer collects, for one top-level target, the modifier
// contributions to each constraint setting in precedence order: ancestor
// directories outermost first, then the target itself, then the command line.
package layer

import (
	"context"
	"fmt"
	"sort"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// ScopeKind is where a modifier was declared.
type ScopeKind int

const (
	ScopeAncestor ScopeKind = iota + 1
	ScopeTarget
	ScopeCommandLine
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAncestor:
		return "ancestor"
	case ScopeTarget:
		return "target"
	case ScopeCommandLine:
		return "command-line"
	default:
		return fmt.Sprintf("scope(%d)", int(k))
	}
}

// Scope identifies one declaration site. Depth orders ancestor directories
// from the workspace root (0) inwards; Dir is the directory for ancestors.
type Scope struct {
	Kind  ScopeKind
	Depth int
	Dir   string
}

func (s Scope) String() string {
	if s.Kind == ScopeAncestor {
		return fmt.Sprintf("ancestor[%d] //%s", s.Depth, s.Dir)
	}
	return s.Kind.String()
}

// Layer is one modifier contribution.
type Layer struct {
	Scope Scope
	Decl  modifier.Declaration
}

// Target is the statically declared input a resolution needs, and nothing else.
type Target struct {
	// Label is the target's identity, e.g. "//app/ios:bin".
	Label string
	// RuleKind is matched by rule_select, e.g. "apple_binary".
	RuleKind string
	// Ancestors are the directories enclosing the target, outermost first,
	// ending with the target's own package directory.
	Ancestors []string
	// Modifiers are the target-attribute modifiers.
	Modifiers []modifier.Declaration
	// Legacy is the configuration from the older platform mechanism.
	Legacy constraint.Configuration
	// Err is set when the target's own declarations failed to load or
	// select. Collecting such a target reports Err and nothing else.
	Err error
}

// ScopeSource yields the modifiers declared at one directory.
type ScopeSource interface {
	DirectoryModifiers(ctx context.Context, dir string) ([]modifier.Declaration, error)
}

// Collector assembles layers for targets.
type Collector struct {
	Source ScopeSource
}

// Layers are the collected contributions for one target.
type Layers struct {
	Target string
	// All holds every layer in precedence order.
	All []Layer

	bySetting map[constraint.Setting][]Layer
}

// Collect gathers the layers of t, with cli appended last. Command-line
// layers keep their given order, so a later entry for a setting wins.
func (c *Collector) Collect(ctx context.Context, t Target, cli []modifier.Declaration) (*Layers, error) {
	if t.Err != nil {
		return nil, t.Err
	}
	l := &Layers{Target: t.Label, bySetting: make(map[constraint.Setting][]Layer)}

	for depth, dir := range t.Ancestors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.Source == nil {
			break
		}
		decls, err := c.Source.DirectoryModifiers(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("collecting modifiers of //%s: %w", dir, err)
		}
		for _, d := range decls {
			l.add(Layer{Scope: Scope{Kind: ScopeAncestor, Depth: depth, Dir: dir}, Decl: d})
		}
	}
	for _, d := range t.Modifiers {
		l.add(Layer{Scope: Scope{Kind: ScopeTarget}, Decl: d})
	}
	for _, d := range cli {
		l.add(Layer{Scope: Scope{Kind: ScopeCommandLine}, Decl: d})
	}
	return l, nil
}

func (l *Layers) add(layer Layer) {
	l.All = append(l.All, layer)
	s := layer.Decl.Setting()
	l.bySetting[s] = append(l.bySetting[s], layer)
}

// For returns the layers writing s, in precedence order.
func (l *Layers) For(s constraint.Setting) []Layer {
	return l.bySetting[s]
}

// Settings returns every written setting, sorted.
func (l *Layers) Settings() []constraint.Setting {
	out := make([]constraint.Setting, 0, len(l.bySetting))
	for s := range l.bySetting {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Deps returns the dependency pair of every layer, for planning.
func (l *Layers) Deps() []modifier.Deps {
	out := make([]modifier.Deps, len(l.All))
	for i, layer := range l.All {
		out[i] = layer.Decl.Deps
	}
	return out
}

// ByScope returns the layers declared at scope kind k, in order.
func (l *Layers) ByScope(k ScopeKind) []Layer {
	var out []Layer
	for _, layer := range l.All {
		if layer.Scope.Kind == k {
			out = append(out, layer)
		}
	}
	return out
}
