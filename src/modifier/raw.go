package modifier

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RawKind tags the variant of an unresolved expression.
type RawKind int

const (
	RawLiteral RawKind = iota + 1
	RawStateSelect
	RawRuleSelect
	RawHostSelect
)

// selectKeys maps the YAML key of each select form to its kind.
var selectKeys = map[string]RawKind{
	"select":      RawStateSelect,
	"rule_select": RawRuleSelect,
	"host_select": RawHostSelect,
}

func (k RawKind) String() string {
	switch k {
	case RawLiteral:
		return "literal"
	case RawStateSelect:
		return "select"
	case RawRuleSelect:
		return "rule_select"
	case RawHostSelect:
		return "host_select"
	default:
		return fmt.Sprintf("rawkind(%d)", int(k))
	}
}

// Raw is a modifier expression as written, before alias resolution.
type Raw struct {
	Kind RawKind
	// Name is the literal's value name (alias or id).
	Name string
	// Cases are in declared order. For rule_select a DEFAULT key stays here.
	Cases []RawCase
	// Default is the DEFAULT branch of select and host_select.
	Default *Raw
	Line    int
	Col     int
}

// RawCase is a condition (or rule pattern) and the expression it selects.
type RawCase struct {
	Key  string
	Then *Raw
	Line int
	Col  int
}

// Lit is a convenience constructor for a literal.
func Lit(name string) *Raw {
	return &Raw{Kind: RawLiteral, Name: name}
}

// UnmarshalYAML decodes the declaration syntax:
//
//	os: linux                    # literal
//	compiler:
//	  select:                    # or rule_select / host_select
//	    windows: msvc
//	    DEFAULT: clang
func (r *Raw) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	r.Line, r.Col = node.Line, node.Column

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return fmt.Errorf("line %d: empty modifier value", node.Line)
		}
		r.Kind = RawLiteral
		r.Name = node.Value
		return nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: modifier mapping must have exactly one of select, rule_select, host_select", node.Line)
		}
		key, body := node.Content[0], node.Content[1]
		kind, ok := selectKeys[key.Value]
		if !ok {
			return fmt.Errorf("line %d: unknown modifier form %q (supported: select, rule_select, host_select)", key.Line, key.Value)
		}
		r.Kind = kind
		if body.Kind == yaml.AliasNode {
			body = body.Alias
		}
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: %s expects a mapping of condition to modifier", body.Line, key.Value)
		}
		return r.decodeCases(body)

	default:
		return fmt.Errorf("line %d: modifier must be a value name or a select mapping", node.Line)
	}
}

func (r *Raw) decodeCases(body *yaml.Node) error {
	seen := make(map[string]bool)
	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return fmt.Errorf("line %d: %s condition must be a non-empty name", k.Line, r.Kind)
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: duplicate %s condition %q", k.Line, r.Kind, k.Value)
		}
		seen[k.Value] = true

		then := &Raw{}
		if err := then.UnmarshalYAML(v); err != nil {
			return err
		}
		if k.Value == DefaultKey && r.Kind != RawRuleSelect {
			r.Default = then
			continue
		}
		r.Cases = append(r.Cases, RawCase{Key: k.Value, Then: then, Line: k.Line, Col: k.Column})
	}
	if len(r.Cases) == 0 && r.Default == nil {
		return fmt.Errorf("line %d: %s has no cases", body.Line, r.Kind)
	}
	return nil
}

// Entry is one key of a modifier mapping.
type Entry struct {
	// Key is the setting name as written.
	Key  string
	Expr *Raw
	Line int
	Col  int
}

// Map is an ordered modifier mapping (setting -> expression) as it appears in
// a declaration file.
type Map []Entry

// UnmarshalYAML keeps declaration order, which yaml.v3 maps would lose.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: modifiers must be a mapping of setting to modifier", node.Line)
	}
	seen := make(map[string]bool)
	out := make(Map, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return fmt.Errorf("line %d: modifier key must be a setting name", k.Line)
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: duplicate modifier for %q", k.Line, k.Value)
		}
		seen[k.Value] = true
		raw := &Raw{}
		if err := raw.UnmarshalYAML(v); err != nil {
			return err
		}
		out = append(out, Entry{Key: k.Value, Expr: raw, Line: k.Line, Col: k.Column})
	}
	*m = out
	return nil
}
