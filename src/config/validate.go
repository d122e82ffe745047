package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ValidateCatalog checks the file-level invariants of a catalog. Cross
// references (aliases, bundles, host values) are checked when the catalog is
// built. Returns warnings (soft issues) and a hard error if the file is invalid.
func ValidateCatalog(c *Catalog) (warnings []string, err error) {
	var errs []string

	if c.Version != LatestVersion {
		errs = append(errs, fmt.Sprintf("version: must be %d, got %d", LatestVersion, c.Version))
	}
	if c.Requires != "" {
		if _, err := semver.NewConstraint(c.Requires); err != nil {
			errs = append(errs, fmt.Sprintf("requires: %q is not a valid version constraint: %v", c.Requires, err))
		}
	}
	if len(c.Settings) == 0 {
		errs = append(errs, "settings: at least one constraint setting is required")
	}
	for _, s := range sortedNames(c.Settings) {
		if len(c.Settings[s]) == 0 {
			warnings = append(warnings, fmt.Sprintf("settings.%s: no values; nothing can select it", s))
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// ValidatePackage checks structural invariants of a package file. Modifier
// expressions are checked when they are resolved against the catalog.
func ValidatePackage(p *Package) (warnings []string, err error) {
	var errs []string

	if p.Version != LatestVersion {
		errs = append(errs, fmt.Sprintf("version: must be %d, got %d", LatestVersion, p.Version))
	}

	names := make(map[string]bool)
	for i, t := range p.Targets {
		tpath := fmt.Sprintf("targets[%d]", i)

		switch {
		case t.Name == "":
			errs = append(errs, fmt.Sprintf("%s: name is required", tpath))
		case !isTargetName(t.Name):
			errs = append(errs, fmt.Sprintf("%s: name %q must not contain '/', ':', '?' or ','", tpath, t.Name))
		case names[t.Name]:
			errs = append(errs, fmt.Sprintf("%s: duplicate target name %q", tpath, t.Name))
		default:
			names[t.Name] = true
		}

		if t.Rule == "" {
			warnings = append(warnings, fmt.Sprintf("%s: no rule kind; rule_select only matches DEFAULT", tpath))
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// CheckRequires verifies the running tool version against a catalog's
// requires constraint. Development builds always pass.
func CheckRequires(requires, toolVersion string) error {
	if requires == "" || toolVersion == "" || strings.HasPrefix(toolVersion, "dev") {
		return nil
	}
	c, err := semver.NewConstraint(requires)
	if err != nil {
		return fmt.Errorf("requires: %w", err)
	}
	v, err := semver.NewVersion(toolVersion)
	if err != nil {
		return fmt.Errorf("tool version %q: %w", toolVersion, err)
	}
	if ok, reasons := c.Validate(v); !ok {
		msgs := make([]string, len(reasons))
		for i, r := range reasons {
			msgs[i] = r.Error()
		}
		return fmt.Errorf("catalog requires cfgmod %s, running %s: %s", requires, v, strings.Join(msgs, "; "))
	}
	return nil
}

func isTargetName(s string) bool {
	return !strings.ContainsAny(s, "/:?,") && strings.TrimSpace(s) == s
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
