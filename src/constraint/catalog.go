package constraint

import (
	"fmt"
	"sort"
	"strings"
)

// RefKind says whether a name refers to a setting or a value.
type RefKind int

const (
	RefSetting RefKind = iota + 1
	RefValue
)

func (k RefKind) String() string {
	switch k {
	case RefSetting:
		return "setting"
	case RefValue:
		return "value"
	default:
		return fmt.Sprintf("refkind(%d)", int(k))
	}
}

// Ref is a resolved name: a setting, or a value together with its owning setting.
type Ref struct {
	Kind    RefKind
	Setting Setting
	Value   Value
}

// Spec is the raw, unvalidated content of a catalog. Names in Aliases targets,
// Bundles, Platforms and Host may be aliases or canonical identifiers.
type Spec struct {
	// Settings maps each setting id to its legal value ids.
	Settings map[string][]string
	// Aliases maps short names to setting or value ids.
	Aliases map[string]string
	// Bundles maps a bundle name to the values it expands to.
	Bundles map[string][]string
	// Platforms maps a legacy platform name to its values.
	Platforms map[string][]string
	// Host maps a host attribute ("os", "arch") to runtime value -> constraint value.
	Host map[string]map[string]string
}

// Catalog is the immutable registry of settings, values, aliases, bundles and
// legacy platforms for one invocation. It is safe for concurrent readers.
type Catalog struct {
	settings  map[Setting][]Value
	owner     map[Value]Setting
	aliases   map[string]Ref
	short     map[string]string
	bundles   map[string][]Value
	platforms map[string][]Value
	host      map[string]map[string]Value
}

// NewCatalog validates spec and builds a Catalog. All problems are reported
// together, joined by "; ".
func NewCatalog(spec Spec) (*Catalog, error) {
	c := &Catalog{
		settings:  make(map[Setting][]Value),
		owner:     make(map[Value]Setting),
		aliases:   make(map[string]Ref),
		short:     make(map[string]string),
		bundles:   make(map[string][]Value),
		platforms: make(map[string][]Value),
		host:      make(map[string]map[string]Value),
	}
	var errs []string

	for _, sname := range sortedKeys(spec.Settings) {
		s := Setting(sname)
		if sname == "" {
			errs = append(errs, "settings: empty setting id")
			continue
		}
		vals := make([]Value, 0, len(spec.Settings[sname]))
		for _, vname := range spec.Settings[sname] {
			v := Value(vname)
			if prev, dup := c.owner[v]; dup {
				errs = append(errs, fmt.Sprintf("settings.%s: value %q already belongs to %s", sname, vname, prev))
				continue
			}
			if _, clash := spec.Settings[vname]; clash {
				errs = append(errs, fmt.Sprintf("settings.%s: value %q is also a setting id", sname, vname))
				continue
			}
			c.owner[v] = s
			vals = append(vals, v)
		}
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
		c.settings[s] = vals
	}

	for _, name := range sortedKeys(spec.Aliases) {
		target := spec.Aliases[name]
		if c.isCanonical(name) {
			errs = append(errs, fmt.Sprintf("aliases.%s: alias shadows a canonical id", name))
			continue
		}
		ref, ok := c.canonical(target)
		if !ok {
			errs = append(errs, fmt.Sprintf("aliases.%s: unknown target %q", name, target))
			continue
		}
		c.aliases[name] = ref
		id := refID(ref)
		if cur, seen := c.short[id]; !seen || name < cur {
			c.short[id] = name
		}
	}

	for _, name := range sortedKeys(spec.Bundles) {
		if _, clash := c.aliases[name]; clash || c.isCanonical(name) {
			errs = append(errs, fmt.Sprintf("bundles.%s: name collides with an alias or id", name))
			continue
		}
		vals, verrs := c.valueList("bundles."+name, spec.Bundles[name])
		errs = append(errs, verrs...)
		c.bundles[name] = vals
	}

	for _, name := range sortedKeys(spec.Platforms) {
		vals, verrs := c.valueList("platforms."+name, spec.Platforms[name])
		errs = append(errs, verrs...)
		c.platforms[name] = vals
	}

	for _, attr := range sortedKeys(spec.Host) {
		m := make(map[string]Value)
		for _, rt := range sortedKeys(spec.Host[attr]) {
			ref, err := c.Lookup(spec.Host[attr][rt])
			if err != nil || ref.Kind != RefValue {
				errs = append(errs, fmt.Sprintf("host.%s.%s: %q is not a constraint value", attr, rt, spec.Host[attr][rt]))
				continue
			}
			m[rt] = ref.Value
		}
		c.host[attr] = m
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

// valueList resolves names to values and enforces one value per setting.
func (c *Catalog) valueList(path string, names []string) ([]Value, []string) {
	var errs []string
	seen := make(map[Setting]Value)
	vals := make([]Value, 0, len(names))
	for _, n := range names {
		ref, err := c.Lookup(n)
		if err != nil || ref.Kind != RefValue {
			errs = append(errs, fmt.Sprintf("%s: %q is not a constraint value", path, n))
			continue
		}
		if prev, dup := seen[ref.Setting]; dup {
			errs = append(errs, fmt.Sprintf("%s: %s and %s both set %s", path, prev, ref.Value, ref.Setting))
			continue
		}
		seen[ref.Setting] = ref.Value
		vals = append(vals, ref.Value)
	}
	return vals, errs
}

func (c *Catalog) isCanonical(name string) bool {
	_, ok := c.canonical(name)
	return ok
}

func (c *Catalog) canonical(name string) (Ref, bool) {
	if _, ok := c.settings[Setting(name)]; ok {
		return Ref{Kind: RefSetting, Setting: Setting(name)}, true
	}
	if s, ok := c.owner[Value(name)]; ok {
		return Ref{Kind: RefValue, Setting: s, Value: Value(name)}, true
	}
	return Ref{}, false
}

// Lookup resolves an alias or canonical id. Unknown names fail with
// *UnknownAliasError.
func (c *Catalog) Lookup(name string) (Ref, error) {
	if ref, ok := c.aliases[name]; ok {
		return ref, nil
	}
	if ref, ok := c.canonical(name); ok {
		return ref, nil
	}
	return Ref{}, &UnknownAliasError{Name: name}
}

// LookupSetting resolves name and requires it to be a setting.
func (c *Catalog) LookupSetting(name string) (Setting, error) {
	ref, err := c.Lookup(name)
	if err != nil {
		return "", err
	}
	if ref.Kind != RefSetting {
		return "", fmt.Errorf("%q names value %s, expected a constraint setting", name, ref.Value)
	}
	return ref.Setting, nil
}

// LookupValue resolves name and requires it to be a value.
func (c *Catalog) LookupValue(name string) (Ref, error) {
	ref, err := c.Lookup(name)
	if err != nil {
		return Ref{}, err
	}
	if ref.Kind != RefValue {
		return Ref{}, fmt.Errorf("%q names setting %s, expected a constraint value", name, ref.Setting)
	}
	return ref, nil
}

// SettingOf returns the setting that owns v.
func (c *Catalog) SettingOf(v Value) (Setting, bool) {
	s, ok := c.owner[v]
	return s, ok
}

// Bundle returns the values of a named bundle.
func (c *Catalog) Bundle(name string) ([]Value, bool) {
	vals, ok := c.bundles[name]
	if !ok {
		return nil, false
	}
	return append([]Value(nil), vals...), true
}

// Expand resolves a command-line style name: a value yields itself, a bundle
// yields its contents in declared order.
func (c *Catalog) Expand(name string) ([]Ref, error) {
	if vals, ok := c.bundles[name]; ok {
		refs := make([]Ref, 0, len(vals))
		for _, v := range vals {
			refs = append(refs, Ref{Kind: RefValue, Setting: c.owner[v], Value: v})
		}
		return refs, nil
	}
	ref, err := c.LookupValue(name)
	if err != nil {
		return nil, err
	}
	return []Ref{ref}, nil
}

// Platform returns the legacy configuration for a named platform.
func (c *Catalog) Platform(name string) (Configuration, error) {
	vals, ok := c.platforms[name]
	if !ok {
		return Configuration{}, &UnknownPlatformError{Name: name}
	}
	var cfg Configuration
	for _, v := range vals {
		cfg.Set(c.owner[v], v)
	}
	return cfg, nil
}

// HostValue maps a runtime host attribute value (e.g. os=darwin) to a constraint value.
func (c *Catalog) HostValue(attr, runtimeValue string) (Value, bool) {
	v, ok := c.host[attr][runtimeValue]
	return v, ok
}

// HostAttributes returns the host attributes the catalog maps, sorted.
func (c *Catalog) HostAttributes() []string {
	return sortedKeys(c.host)
}

// Settings returns all settings in lexical order.
func (c *Catalog) Settings() []Setting {
	out := make([]Setting, 0, len(c.settings))
	for s := range c.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Values returns the legal values of s in lexical order.
func (c *Catalog) Values(s Setting) []Value {
	return append([]Value(nil), c.settings[s]...)
}

// Aliases returns all alias names, sorted.
func (c *Catalog) Aliases() []string { return sortedKeys(c.aliases) }

// Bundles returns all bundle names, sorted.
func (c *Catalog) Bundles() []string { return sortedKeys(c.bundles) }

// Platforms returns all legacy platform names, sorted.
func (c *Catalog) Platforms() []string { return sortedKeys(c.platforms) }

// ShortName returns the lexically smallest alias for a canonical id, or the id itself.
func (c *Catalog) ShortName(id string) string {
	if n, ok := c.short[id]; ok {
		return n
	}
	return id
}

func refID(r Ref) string {
	if r.Kind == RefSetting {
		return string(r.Setting)
	}
	return string(r.Value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
