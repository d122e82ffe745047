package modifier

import (
	"fmt"
	"strings"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// AmbiguousSelectError reports an expression whose literal leaves do not all
// belong to one setting, or belong to a setting other than the declared one.
type AmbiguousSelectError struct {
	Pos      Pos
	Declared constraint.Setting
	Settings []constraint.Setting
}

func (e *AmbiguousSelectError) Error() string {
	names := make([]string, len(e.Settings))
	for i, s := range e.Settings {
		names[i] = string(s)
	}
	var msg string
	if len(e.Settings) > 1 {
		msg = fmt.Sprintf("ambiguous modifier select: leaves set %s", strings.Join(names, ", "))
	} else {
		msg = fmt.Sprintf("ambiguous modifier select: declared for %s but leaves set %s", e.Declared, strings.Join(names, ", "))
	}
	if p := e.Pos.String(); p != "" {
		return p + ": " + msg
	}
	return msg
}

// NoMatchingCaseError reports a select with no matching case and no default.
type NoMatchingCaseError struct {
	Pos Pos
	// Select is the select form: "select", "rule_select" or "host_select".
	Select string
	// Subject describes what was matched against.
	Subject string
	Tried   []string
}

func (e *NoMatchingCaseError) Error() string {
	msg := fmt.Sprintf("no matching case in %s for %s (tried %s)", e.Select, e.Subject, strings.Join(e.Tried, ", "))
	if p := e.Pos.String(); p != "" {
		return p + ": " + msg
	}
	return msg
}

// InvalidPatternError reports a rule_select pattern that is not a valid regex.
type InvalidPatternError struct {
	Pos     Pos
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	msg := fmt.Sprintf("invalid rule pattern %q: %v", e.Pattern, e.Err)
	if p := e.Pos.String(); p != "" {
		return p + ": " + msg
	}
	return msg
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }
