package modifier

import (
	"errors"
	"fmt"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// Resolve replaces every alias in raw with canonical catalog identifiers and
// compiles rule patterns. Unknown names fail with *constraint.UnknownAliasError
// carrying the source position inside file.
func Resolve(raw *Raw, cat *constraint.Catalog, file string) (Expr, error) {
	pos := Pos{File: file, Line: raw.Line, Col: raw.Col}

	switch raw.Kind {
	case RawLiteral:
		ref, err := cat.LookupValue(raw.Name)
		if err != nil {
			return nil, withPos(err, pos)
		}
		return &Literal{Value: ref.Value, Setting: ref.Setting, Name: raw.Name, Pos: pos}, nil

	case RawStateSelect, RawHostSelect:
		cases := make([]CondCase, 0, len(raw.Cases))
		for _, rc := range raw.Cases {
			casePos := Pos{File: file, Line: rc.Line, Col: rc.Col}
			cond, err := resolveCondition(rc.Key, cat)
			if err != nil {
				return nil, withPos(err, casePos)
			}
			then, err := Resolve(rc.Then, cat, file)
			if err != nil {
				return nil, err
			}
			cases = append(cases, CondCase{Cond: cond, Then: then})
		}
		def, err := resolveDefault(raw.Default, cat, file)
		if err != nil {
			return nil, err
		}
		if raw.Kind == RawStateSelect {
			return &StateSelect{Cases: cases, Default: def, Pos: pos}, nil
		}
		return &HostSelect{Cases: cases, Default: def, Pos: pos}, nil

	case RawRuleSelect:
		cases := make([]RuleCase, 0, len(raw.Cases))
		for _, rc := range raw.Cases {
			then, err := Resolve(rc.Then, cat, file)
			if err != nil {
				return nil, err
			}
			c, err := NewRuleCase(rc.Key, then)
			if err != nil {
				return nil, withPos(err, Pos{File: file, Line: rc.Line, Col: rc.Col})
			}
			cases = append(cases, c)
		}
		def, err := resolveDefault(raw.Default, cat, file)
		if err != nil {
			return nil, err
		}
		return &RuleSelect{Cases: cases, Default: def, Pos: pos}, nil

	default:
		return nil, fmt.Errorf("%s: unknown modifier kind %s", pos, raw.Kind)
	}
}

func resolveDefault(raw *Raw, cat *constraint.Catalog, file string) (Expr, error) {
	if raw == nil {
		return nil, nil
	}
	return Resolve(raw, cat, file)
}

// resolveCondition maps a condition name to a bundle, value or setting.
func resolveCondition(name string, cat *constraint.Catalog) (Condition, error) {
	if vals, ok := cat.Bundle(name); ok {
		refs := make([]constraint.Ref, 0, len(vals))
		for _, v := range vals {
			s, _ := cat.SettingOf(v)
			refs = append(refs, constraint.Ref{Kind: constraint.RefValue, Setting: s, Value: v})
		}
		return Condition{Kind: CondBundle, Name: name, Values: refs}, nil
	}
	ref, err := cat.Lookup(name)
	if err != nil {
		return Condition{}, err
	}
	if ref.Kind == constraint.RefSetting {
		return Condition{Kind: CondSetting, Name: name, Setting: ref.Setting}, nil
	}
	return Condition{Kind: CondValue, Name: name, Setting: ref.Setting, Values: []constraint.Ref{ref}}, nil
}

// withPos attaches a source position to errors that carry one.
func withPos(err error, pos Pos) error {
	var unknown *constraint.UnknownAliasError
	if errors.As(err, &unknown) {
		unknown.Pos = pos.String()
		return unknown
	}
	var bad *InvalidPatternError
	if errors.As(err, &bad) {
		bad.Pos = pos
		return bad
	}
	if p := pos.String(); p != "" {
		return fmt.Errorf("%s: %w", p, err)
	}
	return err
}
