package modifier_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/modifier"
	"github.com/sofmeright/cfgmod/src/testutil"
)

// declare decodes a YAML modifier mapping and resolves it against the fixture catalog.
func declare(t *testing.T, src string) ([]modifier.Declaration, error) {
	t.Helper()
	var m modifier.Map
	require.NoError(t, yaml.Unmarshal([]byte(src), &m))
	return modifier.DeclareMap(m, testutil.Catalog(t), "pkg/.cfgmod.yml")
}

func mustDeclare(t *testing.T, src string) []modifier.Declaration {
	t.Helper()
	decls, err := declare(t, src)
	require.NoError(t, err)
	return decls
}

func TestDecodeKeepsDeclaredOrder(t *testing.T) {
	var m modifier.Map
	require.NoError(t, yaml.Unmarshal([]byte(`
os:
  rule_select:
    "apple_.*": iphone
    DEFAULT: linux
    "android_.*": android
compiler: clang
`), &m))

	require.Len(t, m, 2)
	assert.Equal(t, "os", m[0].Key)
	assert.Equal(t, "compiler", m[1].Key)

	rs := m[0].Expr
	assert.Equal(t, modifier.RawRuleSelect, rs.Kind)
	require.Len(t, rs.Cases, 3)
	assert.Equal(t, []string{"apple_.*", "DEFAULT", "android_.*"},
		[]string{rs.Cases[0].Key, rs.Cases[1].Key, rs.Cases[2].Key})
	assert.Nil(t, rs.Default)
}

func TestDecodeDefaultOfStateSelect(t *testing.T) {
	var m modifier.Map
	require.NoError(t, yaml.Unmarshal([]byte(`
compiler:
  select:
    windows: msvc
    DEFAULT: clang
`), &m))

	sel := m[0].Expr
	assert.Equal(t, modifier.RawStateSelect, sel.Kind)
	require.Len(t, sel.Cases, 1)
	require.NotNil(t, sel.Default)
	assert.Equal(t, "clang", sel.Default.Name)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"unknown form":   "os: {match: {linux: linux}}",
		"two forms":      "os: {select: {linux: linux}, host_select: {linux: linux}}",
		"empty select":   "os: {select: {}}",
		"duplicate case": "os:\n  select:\n    linux: linux\n    linux: macos\n",
		"list value":     "os: [linux]",
		"duplicate key":  "os: linux\nos: macos\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			var m modifier.Map
			assert.Error(t, yaml.Unmarshal([]byte(src), &m))
		})
	}
}

func TestResolveAliases(t *testing.T) {
	decls := mustDeclare(t, `
compiler:
  select:
    windows: msvc
    DEFAULT: clang
`)
	require.Len(t, decls, 1)
	d := decls[0]
	assert.Equal(t, testutil.Compiler, d.Setting())
	assert.Equal(t, []constraint.Setting{testutil.OS}, d.Deps.Reads)

	sel, ok := d.Expr.(*modifier.StateSelect)
	require.True(t, ok)
	assert.Equal(t, testutil.Windows, sel.Cases[0].Cond.Values[0].Value)
	assert.Equal(t, testutil.MSVC, sel.Cases[0].Then.(*modifier.Literal).Value)
	assert.Equal(t, "select{windows: //constraints:msvc, DEFAULT: //constraints:clang}", modifier.Format(d.Expr))
}

func TestResolveUnknownAliasCarriesPosition(t *testing.T) {
	_, err := declare(t, `
os:
  select:
    solaris: linux
`)
	var unknown *constraint.UnknownAliasError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "solaris", unknown.Name)
	assert.Equal(t, "pkg/.cfgmod.yml:4:5", unknown.Pos)
}

func TestResolveUnknownKey(t *testing.T) {
	_, err := declare(t, "libc: linux\n")
	var unknown *constraint.UnknownAliasError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "libc", unknown.Name)
}

func TestResolveInvalidRulePattern(t *testing.T) {
	_, err := declare(t, `
os:
  rule_select:
    "apple_(": iphone
`)
	var bad *modifier.InvalidPatternError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, 4, bad.Pos.Line)
}

func TestExtractReadsOnlyStateSelectConditions(t *testing.T) {
	decls := mustDeclare(t, `
os:
  rule_select:
    "apple_.*": iphone
    DEFAULT:
      host_select:
        linux: linux
        macos: macos
compiler:
  rule_select:
    "win_.*":
      select:
        arch: msvc
        linux-release: gcc
    DEFAULT: clang
`)
	require.Len(t, decls, 2)
	assert.Empty(t, decls[0].Deps.Reads)
	assert.Equal(t, []constraint.Setting{testutil.Arch, testutil.Opt, testutil.OS}, decls[1].Deps.Reads)
}

func TestExtractAmbiguousSelect(t *testing.T) {
	_, err := declare(t, `
os:
  select:
    arch: linux
    DEFAULT: clang
`)
	var amb *modifier.AmbiguousSelectError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, []constraint.Setting{testutil.Compiler, testutil.OS}, amb.Settings)

	_, err = declare(t, "os: clang\n")
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, testutil.OS, amb.Declared)
}

func TestEvaluateFirstMatch(t *testing.T) {
	decls := mustDeclare(t, `
compiler:
  select:
    linux: gcc
    x86_64: msvc
    DEFAULT: clang
`)
	env := modifier.Env{Config: constraint.NewConfiguration(map[constraint.Setting]constraint.Value{
		testutil.OS:   testutil.Linux,
		testutil.Arch: testutil.X86_64,
	})}

	lit, branch, err := modifier.Evaluate(decls[0].Expr, env)
	require.NoError(t, err)
	assert.Equal(t, testutil.GCC, lit.Value)
	assert.Equal(t, "select[linux]", branch.String())

	lit, branch, err = modifier.Evaluate(decls[0].Expr, modifier.Env{})
	require.NoError(t, err)
	assert.Equal(t, testutil.Clang, lit.Value)
	assert.Equal(t, "select[DEFAULT]", branch.String())
}

func TestEvaluateRuleSelectHonorsDeclaredDefaultPosition(t *testing.T) {
	decls := mustDeclare(t, `
os:
  rule_select:
    "apple_.*": iphone
    DEFAULT: linux
    "android_.*": android
`)
	lit, branch, err := modifier.Evaluate(decls[0].Expr, modifier.Env{RuleKind: "android_binary"})
	require.NoError(t, err)
	assert.Equal(t, testutil.Linux, lit.Value, "DEFAULT placed before android_.* must win")
	assert.Equal(t, "rule_select[DEFAULT]", branch.String())

	lit, _, err = modifier.Evaluate(decls[0].Expr, modifier.Env{RuleKind: "my_apple_bundle"})
	require.NoError(t, err)
	assert.Equal(t, testutil.IPhone, lit.Value, "patterns match anywhere in the rule kind")
}

func TestEvaluateNestedHostSelect(t *testing.T) {
	decls := mustDeclare(t, `
os:
  rule_select:
    "apple_.*": iphone
    "android_.*": android
    DEFAULT:
      host_select:
        linux: linux
        macos: macos
        windows: windows
`)
	host := constraint.NewConfiguration(map[constraint.Setting]constraint.Value{testutil.OS: testutil.Linux})

	lit, _, err := modifier.Evaluate(decls[0].Expr, modifier.Env{RuleKind: "apple_binary", Host: host})
	require.NoError(t, err)
	assert.Equal(t, testutil.IPhone, lit.Value)

	lit, branch, err := modifier.Evaluate(decls[0].Expr, modifier.Env{RuleKind: "generic_binary", Host: host})
	require.NoError(t, err)
	assert.Equal(t, testutil.Linux, lit.Value)
	assert.Equal(t, "rule_select[DEFAULT] > host_select[linux]", branch.String())
}

func TestEvaluateSettingAndBundleConditions(t *testing.T) {
	decls := mustDeclare(t, `
compiler:
  select:
    linux-release: gcc
    arch: clang
    DEFAULT: msvc
`)
	expr := decls[0].Expr
	cfg := func(pairs map[constraint.Setting]constraint.Value) modifier.Env {
		return modifier.Env{Config: constraint.NewConfiguration(pairs)}
	}

	lit, _, err := modifier.Evaluate(expr, cfg(map[constraint.Setting]constraint.Value{
		testutil.OS: testutil.Linux, testutil.Opt: testutil.Release,
	}))
	require.NoError(t, err)
	assert.Equal(t, testutil.GCC, lit.Value)

	lit, _, err = modifier.Evaluate(expr, cfg(map[constraint.Setting]constraint.Value{
		testutil.OS: testutil.Linux, testutil.Arch: testutil.ARM64,
	}))
	require.NoError(t, err)
	assert.Equal(t, testutil.Clang, lit.Value, "bundle is partial, setting condition matches")

	lit, _, err = modifier.Evaluate(expr, cfg(nil))
	require.NoError(t, err)
	assert.Equal(t, testutil.MSVC, lit.Value)
}

func TestEvaluateNoMatchingCase(t *testing.T) {
	decls := mustDeclare(t, `
os:
  rule_select:
    "apple_.*": iphone
`)
	_, _, err := modifier.Evaluate(decls[0].Expr, modifier.Env{RuleKind: "cxx_binary"})
	var nomatch *modifier.NoMatchingCaseError
	require.True(t, errors.As(err, &nomatch))
	assert.Equal(t, "rule_select", nomatch.Select)
	assert.Contains(t, err.Error(), `"apple_.*"`)
}

func TestConstant(t *testing.T) {
	ref, err := testutil.Catalog(t).LookupValue("macos")
	require.NoError(t, err)

	d := modifier.Constant(ref, "macos")
	assert.Equal(t, testutil.OS, d.Setting())
	lit, branch, err := modifier.Evaluate(d.Expr, modifier.Env{})
	require.NoError(t, err)
	assert.Equal(t, testutil.MacOS, lit.Value)
	assert.Equal(t, "literal", branch.String())
}
