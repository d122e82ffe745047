package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/cfgmod/src/config"
	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/layer"
	"github.com/sofmeright/cfgmod/src/resolve"
	"github.com/sofmeright/cfgmod/src/testutil"
	"github.com/sofmeright/cfgmod/src/workspace"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func writeCatalog(t *testing.T, root string) {
	t.Helper()
	spec := testutil.CatalogSpec()
	data, err := yaml.Marshal(&config.Catalog{
		Version:   config.LatestVersion,
		Requires:  ">= 0.1.0",
		Settings:  spec.Settings,
		Aliases:   spec.Aliases,
		Bundles:   spec.Bundles,
		Platforms: spec.Platforms,
		Host:      spec.Host,
	})
	require.NoError(t, err)
	writeFile(t, root, "catalog.yml", string(data))
}

// fixture lays out:
//
//	catalog.yml
//	.cfgmod.yml          os: linux, compiler derived from os
//	app/.cfgmod.yml      os: macos; targets bin, lib
//	app/ios/.cfgmod.yml  target ios
//	.hidden/.cfgmod.yml  ignored by recursive patterns
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeCatalog(t, root)
	writeFile(t, root, ".cfgmod.yml", `version: 1
modifiers:
  os: linux
  compiler:
    select:
      windows: msvc
      DEFAULT: clang
`)
	writeFile(t, root, "app/.cfgmod.yml", `version: 1
default_platform: linux-x86_64
modifiers:
  os: macos
targets:
  - name: bin
    rule: cxx_binary
    modifiers:
      os: windows
  - name: lib
    rule: cxx_library
    platform: mac-arm64
`)
	writeFile(t, root, "app/ios/.cfgmod.yml", `version: 1
targets:
  - name: ios
    rule: apple_binary
    modifiers:
      os:
        rule_select:
          "apple_.*": iphone
          DEFAULT: linux
`)
	writeFile(t, root, ".hidden/.cfgmod.yml", "version: 1\ntargets:\n  - name: secret\n    rule: x\n")
	return root
}

func open(t *testing.T, root string, opts workspace.Options) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Open(context.Background(), root, opts)
	require.NoError(t, err)
	return ws
}

func labels(ts []layer.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Label
	}
	return out
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in   string
		want workspace.Pattern
	}{
		{"//...", workspace.Pattern{Kind: workspace.MatchRecursive}},
		{"//app/...", workspace.Pattern{Kind: workspace.MatchRecursive, Dir: "app"}},
		{"//app:", workspace.Pattern{Kind: workspace.MatchPackage, Dir: "app"}},
		{"//:", workspace.Pattern{Kind: workspace.MatchPackage}},
		{"//app/ios:ios", workspace.Pattern{Kind: workspace.MatchTarget, Dir: "app/ios", Name: "ios"}},
		{"//:root", workspace.Pattern{Kind: workspace.MatchTarget, Name: "root"}},
		{"//app/ios", workspace.Pattern{Kind: workspace.MatchTarget, Dir: "app/ios", Name: "ios"}},
	}
	for _, tt := range tests {
		got, err := workspace.ParsePattern(tt.in)
		require.NoError(t, err, tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParsePattern(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
		assert.Equal(t, tt.in == "//app/ios", got.String() != tt.in, "round trip of %q", tt.in)
	}

	for _, bad := range []string{"app:bin", "//", "//../x:y", "//a//b:c", "//a:b/c", "//a/.../b:c"} {
		_, err := workspace.ParsePattern(bad)
		assert.Error(t, err, bad)
	}
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{""}, workspace.Ancestors(""))
	assert.Equal(t, []string{"", "app", "app/ios"}, workspace.Ancestors("app/ios"))
}

func TestMatch(t *testing.T) {
	ws := open(t, fixture(t), workspace.Options{})
	ctx := context.Background()

	tests := map[string][]string{
		"//...":         {"//app/ios:ios", "//app:bin", "//app:lib"},
		"//app/...":     {"//app/ios:ios", "//app:bin", "//app:lib"},
		"//app:":        {"//app:bin", "//app:lib"},
		"//app:bin":     {"//app:bin"},
		"//app/ios":     {"//app/ios:ios"},
		"//app/ios/...": {"//app/ios:ios"},
	}
	for pattern, want := range tests {
		got, err := ws.Match(ctx, pattern)
		require.NoError(t, err, pattern)
		assert.Equal(t, want, labels(got), pattern)
	}

	for _, pattern := range []string{"//app:nope", "//missing:x", "//:"} {
		_, err := ws.Match(ctx, pattern)
		assert.True(t, errors.Is(err, workspace.ErrNoTargets), "%s: %v", pattern, err)
	}
}

func TestBrokenTargetDoesNotPoisonItsPackage(t *testing.T) {
	ctx := context.Background()
	root := fixture(t)
	writeFile(t, root, ".cfgmod.yml", `version: 1
modifiers:
  os: linux
targets:
  - name: bad
    rule: cxx_binary
    modifiers:
      os: solaris
`)
	writeFile(t, root, "junk/.cfgmod.yml", "version: 7\n")
	ws := open(t, root, workspace.Options{})

	decls, err := ws.DirectoryModifiers(ctx, "")
	require.NoError(t, err)
	require.Len(t, decls, 1)

	ts, err := ws.Match(ctx, "//...")
	require.NoError(t, err)
	assert.Equal(t, []string{"//:bad", "//app/ios:ios", "//app:bin", "//app:lib", "//junk:"}, labels(ts))

	var unknown *constraint.UnknownAliasError
	require.True(t, errors.As(ts[0].Err, &unknown), "got %v", ts[0].Err)
	assert.Equal(t, ".cfgmod.yml:8:11", unknown.Pos)
	assert.ErrorContains(t, ts[4].Err, "version")

	reqs := make([]resolve.Request, len(ts))
	for i, tgt := range ts {
		reqs[i] = resolve.Request{Target: tgt}
	}
	r := resolve.New(ws.Catalog, constraint.Configuration{}, layer.NewScopeCache(ws), nil)
	out, err := r.ResolveAll(ctx, reqs, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, resolve.Failed(out))
	for _, o := range out[1:4] {
		assert.NoError(t, o.Err, o.Label)
	}
	assert.ErrorContains(t, out[0].Err, `unknown alias "solaris"`)
}

func TestTargetsCarryStaticInputs(t *testing.T) {
	ws := open(t, fixture(t), workspace.Options{})

	ts, err := ws.Match(context.Background(), "//app:")
	require.NoError(t, err)
	require.Len(t, ts, 2)

	bin, lib := ts[0], ts[1]
	assert.Equal(t, "cxx_binary", bin.RuleKind)
	assert.Equal(t, []string{"", "app"}, bin.Ancestors)
	require.Len(t, bin.Modifiers, 1)
	assert.Equal(t, testutil.OS, bin.Modifiers[0].Setting())

	linuxX86, err := ws.Catalog.Platform("linux-x86_64")
	require.NoError(t, err)
	macArm, err := ws.Catalog.Platform("mac-arm64")
	require.NoError(t, err)
	assert.True(t, bin.Legacy.Equal(linuxX86), "bin legacy = %s", bin.Legacy)
	assert.True(t, lib.Legacy.Equal(macArm), "lib legacy = %s", lib.Legacy)
}

func TestTargetPlatformOverride(t *testing.T) {
	ws := open(t, fixture(t), workspace.Options{TargetPlatform: "mac-arm64"})

	ts, err := ws.Match(context.Background(), "//app:")
	require.NoError(t, err)
	for _, tgt := range ts {
		v, _ := tgt.Legacy.Get(testutil.Arch)
		assert.Equal(t, testutil.ARM64, v, tgt.Label)
	}

	_, err = workspace.Open(context.Background(), fixture(t), workspace.Options{TargetPlatform: "beos"})
	var unknown *constraint.UnknownPlatformError
	assert.True(t, errors.As(err, &unknown), "got %v", err)
}

func TestOpenChecksToolVersion(t *testing.T) {
	root := fixture(t)
	_, err := workspace.Open(context.Background(), root, workspace.Options{ToolVersion: "0.0.1"})
	assert.ErrorContains(t, err, "requires")

	_, err = workspace.Open(context.Background(), root, workspace.Options{ToolVersion: "dev"})
	assert.NoError(t, err)
}

func TestLoadPackageReportsPositions(t *testing.T) {
	root := fixture(t)
	writeFile(t, root, "bad/.cfgmod.yml", "version: 1\nmodifiers:\n  os: solaris\n")
	ws := open(t, root, workspace.Options{})

	_, err := ws.DirectoryModifiers(context.Background(), "bad")
	var unknown *constraint.UnknownAliasError
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "bad/.cfgmod.yml:3:7", unknown.Pos)
}

func TestFindRoot(t *testing.T) {
	root := fixture(t)
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	got, err := workspace.FindRoot(filepath.Join(root, "app", "ios"))
	require.NoError(t, err)
	assert.Equal(t, root, got)

	// A git worktree without a catalog stops the search at its top level.
	bare := t.TempDir()
	_, err = git.PlainInit(bare, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(bare, "sub"), 0o755))
	_, err = workspace.FindRoot(filepath.Join(bare, "sub"))
	assert.ErrorContains(t, err, "no workspace catalog")
}

func TestResolveFromDisk(t *testing.T) {
	ctx := context.Background()
	ws := open(t, fixture(t), workspace.Options{})
	r := resolve.New(ws.Catalog, constraint.Configuration{}, layer.NewScopeCache(ws), nil)

	ts, err := ws.Match(ctx, "//...")
	require.NoError(t, err)
	reqs := make([]resolve.Request, len(ts))
	for i, tgt := range ts {
		reqs[i] = resolve.Request{Target: tgt}
	}

	out, err := r.ResolveAll(ctx, reqs, 2)
	require.NoError(t, err)
	require.Zero(t, resolve.Failed(out))

	got := make(map[string]string)
	for _, o := range out {
		got[o.Label] = o.Result.Configuration.String()
	}
	want := map[string]string{
		"//app/ios:ios": "{//constraints:compiler: //constraints:clang, //constraints:os: //constraints:iphone}",
		"//app:bin":     "{//constraints:arch: //constraints:x86_64, //constraints:compiler: //constraints:msvc, //constraints:os: //constraints:windows}",
		"//app:lib":     "{//constraints:arch: //constraints:arm64, //constraints:compiler: //constraints:clang, //constraints:os: //constraints:macos}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("configurations mismatch (-want +got):\n%s", diff)
	}
}

func TestAffected(t *testing.T) {
	ws := open(t, fixture(t), workspace.Options{})
	all, err := ws.Match(context.Background(), "//...")
	require.NoError(t, err)

	assert.Len(t, ws.Affected(all, nil), 3)
	assert.Empty(t, ws.Affected(all, map[string]bool{"README.md": true}))
	assert.Equal(t, []string{"//app/ios:ios"}, labels(ws.Affected(all, map[string]bool{"app/ios/.cfgmod.yml": true})))
	assert.Len(t, ws.Affected(all, map[string]bool{"app/.cfgmod.yml": true}), 3)
	assert.Len(t, ws.Affected(all, map[string]bool{".cfgmod.yml": true}), 3)
	assert.Len(t, ws.Affected(all, map[string]bool{"catalog.yml": true}), 3)
}

func TestDeltaSeesUncommittedPackageFiles(t *testing.T) {
	root := fixture(t)
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	d := &workspace.Delta{Root: root}
	changed, err := d.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.True(t, changed["app/ios/.cfgmod.yml"], "changed = %v", changed)
	assert.True(t, changed["catalog.yml"])

	none, err := (&workspace.Delta{Root: t.TempDir()}).ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Nil(t, none)
}
