package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// LatestVersion is the current schema version of every cfgmod file.
const LatestVersion = 1

// PackageFileName is the per-directory declaration file.
const PackageFileName = ".cfgmod.yml"

// CatalogFileNames are tried, in order, at the workspace root.
var CatalogFileNames = []string{"catalog.yml", "catalog.yaml", "catalog.toml"}

// Catalog is the on-disk form of the constraint catalog.
type Catalog struct {
	Version   int                          `yaml:"version" toml:"version"`
	Requires  string                       `yaml:"requires,omitempty" toml:"requires,omitempty"`
	Settings  map[string][]string          `yaml:"settings" toml:"settings"`
	Aliases   map[string]string            `yaml:"aliases,omitempty" toml:"aliases,omitempty"`
	Bundles   map[string][]string          `yaml:"bundles,omitempty" toml:"bundles,omitempty"`
	Platforms map[string][]string          `yaml:"platforms,omitempty" toml:"platforms,omitempty"`
	Host      map[string]map[string]string `yaml:"host,omitempty" toml:"host,omitempty"`
}

// Spec converts the file into the form constraint.NewCatalog validates.
func (c *Catalog) Spec() constraint.Spec {
	return constraint.Spec{
		Settings:  c.Settings,
		Aliases:   c.Aliases,
		Bundles:   c.Bundles,
		Platforms: c.Platforms,
		Host:      c.Host,
	}
}

// Package is one directory's declaration file.
type Package struct {
	Version         int            `yaml:"version"`
	DefaultPlatform string         `yaml:"default_platform,omitempty"`
	Modifiers       modifier.Map   `yaml:"modifiers,omitempty"`
	Targets         []TargetConfig `yaml:"targets,omitempty"`
}

// TargetConfig declares one top-level target.
type TargetConfig struct {
	Name      string       `yaml:"name"`
	Rule      string       `yaml:"rule"`
	Platform  string       `yaml:"platform,omitempty"`
	Modifiers modifier.Map `yaml:"modifiers,omitempty"`
}

// FindCatalog returns the first catalog file present in root.
func FindCatalog(root string) (string, error) {
	for _, name := range CatalogFileNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no catalog found in %s (looked for %v)", root, CatalogFileNames)
}

// LoadCatalog reads a catalog file. The format follows the extension:
// .toml is TOML, anything else YAML. Unknown keys are rejected.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Catalog
	switch filepath.Ext(path) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := decodeYAML(data, &c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &c, nil
}

// LoadPackage reads a package file. A missing file is an empty package.
func LoadPackage(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Package{Version: LatestVersion}, nil
		}
		return nil, err
	}
	return ParsePackage(path, data)
}

// ParsePackage decodes package file contents; path is used for messages only.
func ParsePackage(path string, data []byte) (*Package, error) {
	var p Package
	if err := decodeYAML(data, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

func decodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		// An empty document is a valid, empty file.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
