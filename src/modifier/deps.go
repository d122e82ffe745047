package modifier

import (
	"fmt"
	"sort"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// Deps is what one modifier expression writes and what in-progress
// configuration it reads.
type Deps struct {
	Writes constraint.Setting
	// Reads holds settings named by select conditions, sorted. Rule and host
	// conditions are not reads: they inspect the rule kind and the host.
	Reads []constraint.Setting
}

// Extract computes the dependencies of e and checks that every reachable
// literal belongs to one setting. If declared is non-empty the literals must
// belong to it. Violations fail with *AmbiguousSelectError.
func Extract(e Expr, declared constraint.Setting) (Deps, error) {
	writes := make(map[constraint.Setting]bool)
	reads := make(map[constraint.Setting]bool)
	walk(e, writes, reads)

	written := sortedSettings(writes)
	if len(written) != 1 || (declared != "" && written[0] != declared) {
		return Deps{}, &AmbiguousSelectError{Pos: e.Position(), Declared: declared, Settings: written}
	}
	return Deps{Writes: written[0], Reads: sortedSettings(reads)}, nil
}

func walk(e Expr, writes, reads map[constraint.Setting]bool) {
	switch e := e.(type) {
	case *Literal:
		writes[e.Setting] = true
	case *StateSelect:
		for _, c := range e.Cases {
			for _, s := range c.Cond.Settings() {
				reads[s] = true
			}
			walk(c.Then, writes, reads)
		}
		if e.Default != nil {
			walk(e.Default, writes, reads)
		}
	case *HostSelect:
		for _, c := range e.Cases {
			walk(c.Then, writes, reads)
		}
		if e.Default != nil {
			walk(e.Default, writes, reads)
		}
	case *RuleSelect:
		for _, c := range e.Cases {
			walk(c.Then, writes, reads)
		}
		if e.Default != nil {
			walk(e.Default, writes, reads)
		}
	default:
		panic(fmt.Sprintf("modifier: unknown expression %T", e))
	}
}

func sortedSettings(m map[constraint.Setting]bool) []constraint.Setting {
	out := make([]constraint.Setting, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
