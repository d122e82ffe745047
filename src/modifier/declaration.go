package modifier

import (
	"errors"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// Declaration is a resolved, validated modifier ready for layering.
type Declaration struct {
	// Key is the setting name as written; empty for command-line modifiers.
	Key  string
	Expr Expr
	Deps Deps
}

// Setting is the setting the declaration writes.
func (d Declaration) Setting() constraint.Setting { return d.Deps.Writes }

// Declare resolves one mapping entry against the catalog. The key must name a
// setting and the expression's literals must all belong to it.
func Declare(e Entry, cat *constraint.Catalog, file string) (Declaration, error) {
	setting, err := cat.LookupSetting(e.Key)
	if err != nil {
		return Declaration{}, withPos(err, Pos{File: file, Line: e.Line, Col: e.Col})
	}
	expr, err := Resolve(e.Expr, cat, file)
	if err != nil {
		return Declaration{}, err
	}
	deps, err := Extract(expr, setting)
	if err != nil {
		return Declaration{}, err
	}
	return Declaration{Key: e.Key, Expr: expr, Deps: deps}, nil
}

// DeclareMap resolves every entry of m, reporting all failures together.
func DeclareMap(m Map, cat *constraint.Catalog, file string) ([]Declaration, error) {
	var (
		out  = make([]Declaration, 0, len(m))
		errs []error
	)
	for _, e := range m {
		d, err := Declare(e, cat, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Constant wraps a single resolved value as a literal declaration.
// Command-line modifiers take this form.
func Constant(ref constraint.Ref, name string) Declaration {
	lit := &Literal{Value: ref.Value, Setting: ref.Setting, Name: name, Pos: Pos{File: "<command line>"}}
	return Declaration{Expr: lit, Deps: Deps{Writes: ref.Setting}}
}
