// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/sofmeright/cfgmod/src/constraint"
)

// Canonical ids used by the fixture catalog.
const (
	OS       = constraint.Setting("//constraints:os")
	Compiler = constraint.Setting("//constraints:compiler")
	Arch     = constraint.Setting("//constraints:arch")
	Opt      = constraint.Setting("//constraints:opt")

	Linux   = constraint.Value("//constraints:linux")
	MacOS   = constraint.Value("//constraints:macos")
	Windows = constraint.Value("//constraints:windows")
	IPhone  = constraint.Value("//constraints:iphone")
	Android = constraint.Value("//constraints:android")

	Clang = constraint.Value("//constraints:clang")
	MSVC  = constraint.Value("//constraints:msvc")
	GCC   = constraint.Value("//constraints:gcc")

	X86_64 = constraint.Value("//constraints:x86_64")
	ARM64  = constraint.Value("//constraints:arm64")

	Debug   = constraint.Value("//constraints:debug")
	Release = constraint.Value("//constraints:release")
)

// CatalogSpec returns the raw spec behind Catalog. Tests may modify the copy.
func CatalogSpec() constraint.Spec {
	return constraint.Spec{
		Settings: map[string][]string{
			string(OS):       {string(Linux), string(MacOS), string(Windows), string(IPhone), string(Android)},
			string(Compiler): {string(Clang), string(MSVC), string(GCC)},
			string(Arch):     {string(X86_64), string(ARM64)},
			string(Opt):      {string(Debug), string(Release)},
		},
		Aliases: map[string]string{
			"os":       string(OS),
			"compiler": string(Compiler),
			"arch":     string(Arch),
			"opt":      string(Opt),
			"linux":    string(Linux),
			"macos":    string(MacOS),
			"windows":  string(Windows),
			"iphone":   string(IPhone),
			"android":  string(Android),
			"clang":    string(Clang),
			"msvc":     string(MSVC),
			"gcc":      string(GCC),
			"x86_64":   string(X86_64),
			"arm64":    string(ARM64),
			"debug":    string(Debug),
			"release":  string(Release),
		},
		Bundles: map[string][]string{
			"linux-release": {"linux", "release"},
			"win-msvc":      {"windows", "msvc"},
		},
		Platforms: map[string][]string{
			"linux-x86_64": {"linux", "x86_64", "gcc"},
			"mac-arm64":    {"macos", "arm64"},
		},
		Host: map[string]map[string]string{
			"os":   {"linux": "linux", "darwin": "macos", "windows": "windows"},
			"arch": {"amd64": "x86_64", "arm64": "arm64"},
		},
	}
}

// Catalog builds the fixture catalog or fails the test.
func Catalog(t testing.TB) *constraint.Catalog {
	t.Helper()
	c, err := constraint.NewCatalog(CatalogSpec())
	if err != nil {
		t.Fatalf("fixture catalog: %v", err)
	}
	return c
}
