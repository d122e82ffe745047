package workspace

import (
	"fmt"
	"path"
	"strings"
)

// Label identifies one target: //dir:name. The root package has dir "".
type Label struct {
	Dir  string
	Name string
}

func (l Label) String() string {
	return "//" + l.Dir + ":" + l.Name
}

// PatternKind says how much of the workspace a pattern covers.
type PatternKind int

const (
	// MatchTarget is //dir:name.
	MatchTarget PatternKind = iota
	// MatchPackage is //dir: (every target of one package).
	MatchPackage
	// MatchRecursive is //dir/... (every target at or below dir).
	MatchRecursive
)

// Pattern is a parsed target pattern.
type Pattern struct {
	Kind PatternKind
	Dir  string
	Name string
}

func (p Pattern) String() string {
	switch p.Kind {
	case MatchPackage:
		return "//" + p.Dir + ":"
	case MatchRecursive:
		if p.Dir == "" {
			return "//..."
		}
		return "//" + p.Dir + "/..."
	default:
		return Label{Dir: p.Dir, Name: p.Name}.String()
	}
}

// ParsePattern accepts //dir:name, //dir:, //dir/..., //... and the
// shorthand //dir, which means //dir:<last path element>.
func ParsePattern(s string) (Pattern, error) {
	rest, ok := strings.CutPrefix(s, "//")
	if !ok {
		return Pattern{}, fmt.Errorf("target pattern %q: must start with //", s)
	}

	if rest == "..." {
		return Pattern{Kind: MatchRecursive}, nil
	}
	if dir, ok := strings.CutSuffix(rest, "/..."); ok {
		if err := checkDir(s, dir); err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: MatchRecursive, Dir: dir}, nil
	}

	dir, name, hasColon := strings.Cut(rest, ":")
	if err := checkDir(s, dir); err != nil {
		return Pattern{}, err
	}
	switch {
	case hasColon && name == "":
		return Pattern{Kind: MatchPackage, Dir: dir}, nil
	case hasColon:
		if strings.ContainsAny(name, "/:") {
			return Pattern{}, fmt.Errorf("target pattern %q: invalid target name %q", s, name)
		}
		return Pattern{Kind: MatchTarget, Dir: dir, Name: name}, nil
	case dir == "":
		return Pattern{}, fmt.Errorf("target pattern %q: missing target name", s)
	default:
		return Pattern{Kind: MatchTarget, Dir: dir, Name: path.Base(dir)}, nil
	}
}

func checkDir(pattern, dir string) error {
	if dir == "" {
		return nil
	}
	if path.Clean(dir) != dir || strings.HasPrefix(dir, "/") || strings.HasPrefix(dir, "..") || strings.Contains(dir, "...") {
		return fmt.Errorf("target pattern %q: invalid package path %q", pattern, dir)
	}
	return nil
}

// Ancestors returns every directory from the workspace root down to dir,
// inclusive, outermost first.
func Ancestors(dir string) []string {
	out := []string{""}
	if dir == "" {
		return out
	}
	parts := strings.Split(dir, "/")
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}
	return out
}
