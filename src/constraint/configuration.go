// Package constraint holds the read-only constraint catalog and the
// Configuration type that modifier resolution produces.
package constraint

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Setting names a mutually-exclusive axis of configuration, e.g. "//constraints:os".
type Setting string

// Value names one concrete choice for exactly one Setting, e.g. "//constraints:linux".
type Value string

// Configuration maps each Setting to at most one Value.
// Set overwrites any prior value for the same setting.
// The zero value is an empty, usable Configuration.
type Configuration struct {
	values map[Setting]Value
}

// NewConfiguration builds a Configuration from setting/value pairs.
func NewConfiguration(pairs map[Setting]Value) Configuration {
	var c Configuration
	for s, v := range pairs {
		c.Set(s, v)
	}
	return c
}

// Set inserts v for s, returning the value it replaced, if any.
func (c *Configuration) Set(s Setting, v Value) (Value, bool) {
	if c.values == nil {
		c.values = make(map[Setting]Value)
	}
	prev, had := c.values[s]
	c.values[s] = v
	return prev, had
}

// Get returns the value chosen for s.
func (c Configuration) Get(s Setting) (Value, bool) {
	v, ok := c.values[s]
	return v, ok
}

// Has reports whether s is currently set to exactly v.
func (c Configuration) Has(s Setting, v Value) bool {
	got, ok := c.values[s]
	return ok && got == v
}

// Len returns the number of settings with a value.
func (c Configuration) Len() int { return len(c.values) }

// IsEmpty reports whether no setting has a value.
func (c Configuration) IsEmpty() bool { return len(c.values) == 0 }

// Settings returns the configured settings in lexical order.
func (c Configuration) Settings() []Setting {
	out := make([]Setting, 0, len(c.values))
	for s := range c.values {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (c Configuration) Clone() Configuration {
	out := Configuration{values: make(map[Setting]Value, len(c.values))}
	for s, v := range c.values {
		out.values[s] = v
	}
	return out
}

// Equal reports whether both configurations hold the same pairs.
func (c Configuration) Equal(o Configuration) bool {
	if len(c.values) != len(o.values) {
		return false
	}
	for s, v := range c.values {
		if ov, ok := o.values[s]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String renders the configuration as "{setting: value, ...}" in setting order.
func (c Configuration) String() string {
	parts := make([]string, 0, len(c.values))
	for _, s := range c.Settings() {
		parts = append(parts, string(s)+": "+string(c.values[s]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON emits a JSON object with keys in setting order so that
// repeated resolutions produce byte-identical output.
func (c Configuration) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range c.Settings() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(s))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(string(c.values[s]))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form written by MarshalJSON.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.values = make(map[Setting]Value, len(raw))
	for s, v := range raw {
		c.values[Setting(s)] = Value(v)
	}
	return nil
}
