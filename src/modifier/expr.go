// Package modifier models modifier expressions and implements alias
// resolution, dependency extraction and first-match evaluation over them.
//
// An Expr is one of four variants: *Literal, *StateSelect, *RuleSelect and
// *HostSelect. The set is closed: only this package can implement Expr, and
// every switch over the variants panics on anything else.
package modifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// DefaultKey is the catch-all condition key.
const DefaultKey = "DEFAULT"

// Pos is a source position inside a declaration file.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	switch {
	case p.File == "" && p.Line == 0:
		return ""
	case p.Line == 0:
		return p.File
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
}

// Expr is a resolved modifier expression.
type Expr interface {
	// Position returns where the expression was declared.
	Position() Pos
	isExpr()
}

// Literal always yields Value.
type Literal struct {
	Value   constraint.Value
	Setting constraint.Setting
	Name    string
	Pos     Pos
}

// StateSelect picks the first case whose condition holds in the in-progress
// target configuration.
type StateSelect struct {
	Cases   []CondCase
	Default Expr
	Pos     Pos
}

// HostSelect picks the first case whose condition holds in the host snapshot.
type HostSelect struct {
	Cases   []CondCase
	Default Expr
	Pos     Pos
}

// RuleSelect picks the first case whose pattern matches anywhere in the
// target's rule kind. A "DEFAULT" case matches any kind at its declared
// position; Default is only consulted after every case failed.
type RuleSelect struct {
	Cases   []RuleCase
	Default Expr
	Pos     Pos
}

func (e *Literal) Position() Pos     { return e.Pos }
func (e *StateSelect) Position() Pos { return e.Pos }
func (e *HostSelect) Position() Pos  { return e.Pos }
func (e *RuleSelect) Position() Pos  { return e.Pos }

func (*Literal) isExpr()     {}
func (*StateSelect) isExpr() {}
func (*HostSelect) isExpr()  {}
func (*RuleSelect) isExpr()  {}

// CondKind distinguishes what a select condition names.
type CondKind int

const (
	// CondValue holds when its setting currently has exactly that value.
	CondValue CondKind = iota + 1
	// CondSetting holds when its setting has any value.
	CondSetting
	// CondBundle holds when every value of the bundle is present.
	CondBundle
)

// Condition is a resolved select condition.
type Condition struct {
	Kind CondKind
	// Name is the condition as written, kept for traces.
	Name    string
	Setting constraint.Setting
	Values  []constraint.Ref
}

// Settings returns every setting the condition inspects.
func (c Condition) Settings() []constraint.Setting {
	switch c.Kind {
	case CondSetting:
		return []constraint.Setting{c.Setting}
	case CondValue, CondBundle:
		out := make([]constraint.Setting, 0, len(c.Values))
		for _, r := range c.Values {
			out = append(out, r.Setting)
		}
		return out
	default:
		panic(fmt.Sprintf("modifier: unknown condition kind %d", c.Kind))
	}
}

// Holds reports whether the condition is satisfied by cfg.
func (c Condition) Holds(cfg constraint.Configuration) bool {
	switch c.Kind {
	case CondSetting:
		_, ok := cfg.Get(c.Setting)
		return ok
	case CondValue, CondBundle:
		for _, r := range c.Values {
			if !cfg.Has(r.Setting, r.Value) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("modifier: unknown condition kind %d", c.Kind))
	}
}

// CondCase is one branch of a StateSelect or HostSelect.
type CondCase struct {
	Cond Condition
	Then Expr
}

// RuleCase is one branch of a RuleSelect.
type RuleCase struct {
	// Pattern is the regex source, or DefaultKey.
	Pattern string
	re      *regexp.Regexp
	Then    Expr
}

// NewRuleCase compiles pattern. DefaultKey compiles to a match-anything case.
func NewRuleCase(pattern string, then Expr) (RuleCase, error) {
	rc := RuleCase{Pattern: pattern, Then: then}
	if pattern == DefaultKey {
		return rc, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RuleCase{}, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	rc.re = re
	return rc, nil
}

// Matches reports whether the case applies to ruleKind. Matching is partial:
// the pattern may match any substring.
func (rc RuleCase) Matches(ruleKind string) bool {
	if rc.Pattern == DefaultKey {
		return true
	}
	return rc.re.MatchString(ruleKind)
}

// Format renders an expression in a compact single-line form for diagnostics.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case *Literal:
		b.WriteString(string(e.Value))
	case *StateSelect:
		b.WriteString("select{")
		for i, c := range e.Cases {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Cond.Name + ": ")
			format(b, c.Then)
		}
		formatDefault(b, len(e.Cases), e.Default)
		b.WriteString("}")
	case *HostSelect:
		b.WriteString("host_select{")
		for i, c := range e.Cases {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Cond.Name + ": ")
			format(b, c.Then)
		}
		formatDefault(b, len(e.Cases), e.Default)
		b.WriteString("}")
	case *RuleSelect:
		b.WriteString("rule_select{")
		for i, c := range e.Cases {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%q: ", c.Pattern)
			format(b, c.Then)
		}
		formatDefault(b, len(e.Cases), e.Default)
		b.WriteString("}")
	default:
		panic(fmt.Sprintf("modifier: unknown expression %T", e))
	}
}

func formatDefault(b *strings.Builder, n int, def Expr) {
	if def == nil {
		return
	}
	if n > 0 {
		b.WriteString(", ")
	}
	b.WriteString(DefaultKey + ": ")
	format(b, def)
}
