package constraint

import "fmt"

// UnknownAliasError reports a name absent from both the alias table and the
// catalog's canonical identifiers.
type UnknownAliasError struct {
	Name string
	// Pos is the source location of the declaration, when known.
	Pos string
}

func (e *UnknownAliasError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: unknown alias %q", e.Pos, e.Name)
	}
	return fmt.Sprintf("unknown alias %q", e.Name)
}

// UnknownPlatformError reports a legacy platform name missing from the catalog.
type UnknownPlatformError struct {
	Name string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q", e.Name)
}
