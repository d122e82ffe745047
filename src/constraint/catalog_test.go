package constraint_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/testutil"
)

func TestLookupAliasAndCanonical(t *testing.T) {
	c := testutil.Catalog(t)

	ref, err := c.Lookup("linux")
	require.NoError(t, err)
	assert.Equal(t, constraint.RefValue, ref.Kind)
	assert.Equal(t, testutil.Linux, ref.Value)
	assert.Equal(t, testutil.OS, ref.Setting)

	ref, err = c.Lookup(string(testutil.Compiler))
	require.NoError(t, err)
	assert.Equal(t, constraint.RefSetting, ref.Kind)

	_, err = c.Lookup("solaris")
	var unknown *constraint.UnknownAliasError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "solaris", unknown.Name)
}

func TestLookupKindMismatch(t *testing.T) {
	c := testutil.Catalog(t)

	_, err := c.LookupSetting("linux")
	assert.Error(t, err)
	_, err = c.LookupValue("os")
	assert.Error(t, err)
}

func TestExpandBundle(t *testing.T) {
	c := testutil.Catalog(t)

	refs, err := c.Expand("win-msvc")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, testutil.Windows, refs[0].Value)
	assert.Equal(t, testutil.OS, refs[0].Setting)
	assert.Equal(t, testutil.MSVC, refs[1].Value)
	assert.Equal(t, testutil.Compiler, refs[1].Setting)

	refs, err = c.Expand("arm64")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, testutil.ARM64, refs[0].Value)

	_, err = c.Expand("os")
	assert.Error(t, err, "a setting is not a modifier")
}

func TestPlatform(t *testing.T) {
	c := testutil.Catalog(t)

	cfg, err := c.Platform("linux-x86_64")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Len())
	assert.True(t, cfg.Has(testutil.Compiler, testutil.GCC))

	_, err = c.Platform("nope")
	var unknown *constraint.UnknownPlatformError
	assert.True(t, errors.As(err, &unknown))
}

func TestHostValue(t *testing.T) {
	c := testutil.Catalog(t)

	v, ok := c.HostValue("os", "darwin")
	require.True(t, ok)
	assert.Equal(t, testutil.MacOS, v)

	_, ok = c.HostValue("os", "plan9")
	assert.False(t, ok)
	assert.Equal(t, []string{"arch", "os"}, c.HostAttributes())
}

func TestShortName(t *testing.T) {
	c := testutil.Catalog(t)
	assert.Equal(t, "linux", c.ShortName(string(testutil.Linux)))
	assert.Equal(t, "//elsewhere:x", c.ShortName("//elsewhere:x"))
}

func TestNewCatalogRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*constraint.Spec)
		want   string
	}{
		{
			name: "value owned twice",
			mutate: func(s *constraint.Spec) {
				s.Settings["//constraints:libc"] = []string{string(testutil.Linux)}
			},
			want: "already belongs to",
		},
		{
			name:   "alias to unknown id",
			mutate: func(s *constraint.Spec) { s.Aliases["bsd"] = "//constraints:bsd" },
			want:   "aliases.bsd: unknown target",
		},
		{
			name:   "alias shadows canonical id",
			mutate: func(s *constraint.Spec) { s.Aliases[string(testutil.Linux)] = string(testutil.MacOS) },
			want:   "shadows a canonical id",
		},
		{
			name:   "bundle with two values of one setting",
			mutate: func(s *constraint.Spec) { s.Bundles["bad"] = []string{"linux", "macos"} },
			want:   "both set",
		},
		{
			name:   "platform with unknown value",
			mutate: func(s *constraint.Spec) { s.Platforms["bad"] = []string{"solaris"} },
			want:   "platforms.bad",
		},
		{
			name:   "host mapping to a setting",
			mutate: func(s *constraint.Spec) { s.Host["os"]["linux"] = "os" },
			want:   "host.os.linux",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testutil.CatalogSpec()
			tt.mutate(&spec)
			_, err := constraint.NewCatalog(spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigurationInsertOverwrites(t *testing.T) {
	var cfg constraint.Configuration
	assert.True(t, cfg.IsEmpty())

	_, had := cfg.Set(testutil.OS, testutil.Linux)
	assert.False(t, had)
	prev, had := cfg.Set(testutil.OS, testutil.Windows)
	assert.True(t, had)
	assert.Equal(t, testutil.Linux, prev)
	assert.Equal(t, 1, cfg.Len())

	got, ok := cfg.Get(testutil.OS)
	require.True(t, ok)
	assert.Equal(t, testutil.Windows, got)
}

func TestConfigurationJSONIsOrdered(t *testing.T) {
	cfg := constraint.NewConfiguration(map[constraint.Setting]constraint.Value{
		testutil.OS:       testutil.Linux,
		testutil.Arch:     testutil.ARM64,
		testutil.Compiler: testutil.Clang,
	})

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t,
		`{"//constraints:arch":"//constraints:arm64","//constraints:compiler":"//constraints:clang","//constraints:os":"//constraints:linux"}`,
		string(data))

	var back constraint.Configuration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, cfg.Equal(back))

	clone := cfg.Clone()
	clone.Set(testutil.OS, testutil.MacOS)
	assert.True(t, cfg.Has(testutil.OS, testutil.Linux))
	assert.Equal(t, "{//constraints:arch: //constraints:arm64, //constraints:compiler: //constraints:clang, //constraints:os: //constraints:linux}", cfg.String())
}
