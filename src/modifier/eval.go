package modifier

import (
	"fmt"
	"strings"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// Env is everything an expression may inspect.
type Env struct {
	// Config is the target configuration accumulated so far.
	Config constraint.Configuration
	// RuleKind is the target's rule kind, e.g. "apple_binary".
	RuleKind string
	// Host is the immutable host snapshot.
	Host constraint.Configuration
}

// Step records one select decision.
type Step struct {
	Select string
	Case   string
}

// Branch is the path of decisions leading to the chosen literal.
type Branch []Step

func (b Branch) String() string {
	if len(b) == 0 {
		return "literal"
	}
	parts := make([]string, len(b))
	for i, s := range b {
		parts[i] = fmt.Sprintf("%s[%s]", s.Select, s.Case)
	}
	return strings.Join(parts, " > ")
}

// Evaluate reduces e to a single literal. Every select is first-match: cases
// are tried in declared order and the first that holds wins, even when a later
// case is more specific.
func Evaluate(e Expr, env Env) (*Literal, Branch, error) {
	var branch Branch
	for {
		switch x := e.(type) {
		case *Literal:
			return x, branch, nil

		case *StateSelect:
			next, step, err := pickCond("select", x.Cases, x.Default, env.Config, x.Pos, "target configuration")
			if err != nil {
				return nil, branch, err
			}
			branch = append(branch, step)
			e = next

		case *HostSelect:
			next, step, err := pickCond("host_select", x.Cases, x.Default, env.Host, x.Pos, "host")
			if err != nil {
				return nil, branch, err
			}
			branch = append(branch, step)
			e = next

		case *RuleSelect:
			next, step, err := pickRule(x, env.RuleKind)
			if err != nil {
				return nil, branch, err
			}
			branch = append(branch, step)
			e = next

		default:
			panic(fmt.Sprintf("modifier: unknown expression %T", e))
		}
	}
}

func pickCond(form string, cases []CondCase, def Expr, cfg constraint.Configuration, pos Pos, subject string) (Expr, Step, error) {
	for _, c := range cases {
		if c.Cond.Holds(cfg) {
			return c.Then, Step{Select: form, Case: c.Cond.Name}, nil
		}
	}
	if def != nil {
		return def, Step{Select: form, Case: DefaultKey}, nil
	}
	tried := make([]string, len(cases))
	for i, c := range cases {
		tried[i] = c.Cond.Name
	}
	return nil, Step{}, &NoMatchingCaseError{Pos: pos, Select: form, Subject: subject + " " + cfg.String(), Tried: tried}
}

func pickRule(x *RuleSelect, ruleKind string) (Expr, Step, error) {
	for _, c := range x.Cases {
		if c.Matches(ruleKind) {
			return c.Then, Step{Select: "rule_select", Case: c.Pattern}, nil
		}
	}
	if x.Default != nil {
		return x.Default, Step{Select: "rule_select", Case: DefaultKey}, nil
	}
	tried := make([]string, len(x.Cases))
	for i, c := range x.Cases {
		tried[i] = fmt.Sprintf("%q", c.Pattern)
	}
	return nil, Step{}, &NoMatchingCaseError{Pos: x.Pos, Select: "rule_select", Subject: fmt.Sprintf("rule kind %q", ruleKind), Tried: tried}
}
