package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// ErrConflictingModifierSyntax is returned when inline "pattern?mods" syntax
// and the global modifier flag are used in the same invocation.
var ErrConflictingModifierSyntax = errors.New("conflicting command-line modifier syntax: use either PATTERN?modifiers or --modifier, not both")

// PatternArg is one command-line target pattern with its modifiers.
type PatternArg struct {
	Pattern   string
	Modifiers []string
}

// ParseCommandLine splits "pattern?mod1,mod2" arguments. Global modifiers
// apply to every pattern, as if appended to each. Mixing the two forms fails
// with ErrConflictingModifierSyntax before anything is resolved.
func ParseCommandLine(args []string, global []string) ([]PatternArg, error) {
	out := make([]PatternArg, 0, len(args))
	inline := false

	for _, arg := range args {
		pattern, mods, hasMods := strings.Cut(arg, "?")
		if pattern == "" {
			return nil, fmt.Errorf("%q: empty target pattern", arg)
		}
		pa := PatternArg{Pattern: pattern}
		if hasMods {
			inline = true
			names, err := splitModifiers(mods)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", arg, err)
			}
			pa.Modifiers = names
		}
		out = append(out, pa)
	}

	var globals []string
	for _, g := range global {
		names, err := splitModifiers(g)
		if err != nil {
			return nil, fmt.Errorf("--modifier %q: %w", g, err)
		}
		globals = append(globals, names...)
	}

	if inline && len(globals) > 0 {
		return nil, ErrConflictingModifierSyntax
	}
	if len(globals) > 0 {
		for i := range out {
			out[i].Modifiers = append([]string(nil), globals...)
		}
	}
	return out, nil
}

func splitModifiers(list string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, errors.New("empty modifier in list")
		}
		names = append(names, name)
	}
	return names, nil
}

// ExpandModifiers resolves command-line modifier names. A bundle expands into
// one modifier per value it contains, in bundle order.
func ExpandModifiers(names []string, cat *constraint.Catalog) ([]modifier.Declaration, error) {
	var (
		out  []modifier.Declaration
		errs []error
	)
	for _, name := range names {
		refs, err := cat.Expand(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("command-line modifier: %w", err))
			continue
		}
		for _, ref := range refs {
			out = append(out, modifier.Constant(ref, name))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
