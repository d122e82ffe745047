package resolve

import (
	"github.com/sofmeright/cfgmod/src/constraint"
)

// Origin says where a setting's final value came from.
type Origin string

const (
	OriginModifier Origin = "modifier"
	OriginLegacy   Origin = "legacy"
)

// Trace records, per setting, which layer supplied the final value and which
// earlier assignments it overrode.
type Trace struct {
	Target   string               `json:"target"`
	RuleKind string               `json:"rule_kind,omitempty"`
	Order    []constraint.Setting `json:"order"`
	Settings []SettingTrace       `json:"settings"`
}

// SettingTrace is the history of one setting. Legacy fill-ins have no
// assignments.
type SettingTrace struct {
	Setting  constraint.Setting `json:"setting"`
	Value    constraint.Value   `json:"value"`
	Origin   Origin             `json:"origin"`
	Applied  *Assignment        `json:"applied,omitempty"`
	Shadowed []Assignment       `json:"shadowed,omitempty"`
}

// Assignment is one evaluated layer.
type Assignment struct {
	Value  constraint.Value `json:"value"`
	Scope  string           `json:"scope"`
	Source string           `json:"source,omitempty"`
	Branch string           `json:"branch"`
	Expr   string           `json:"expr"`
}

// Lookup returns the trace of s.
func (t *Trace) Lookup(s constraint.Setting) (SettingTrace, bool) {
	for _, st := range t.Settings {
		if st.Setting == s {
			return st, true
		}
	}
	return SettingTrace{}, false
}
