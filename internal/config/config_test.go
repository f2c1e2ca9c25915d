package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/jptrs93/troto/internal/wellknown"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

const sampleYAML = `
root: schema
out: gen
proto_paths: [third_party, vendor]
check: true
types:
  - module: acme/money
    name: Money
    proto: acme.type.Money
    import: acme/type/money.proto
`

func TestLoad(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultFile, []byte(sampleYAML), 0o644))

	conf, err := Load(fs, DefaultFile, true)
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("schema"), conf.Root)
	assert.Equal(t, null.StringFrom("gen"), conf.Out)
	assert.Equal(t, []string{"third_party", "vendor"}, conf.ProtoPaths)
	assert.Equal(t, null.BoolFrom(true), conf.Check)
	assert.False(t, conf.Ignore.Valid)
	assert.Equal(t, []wellknown.Type{{
		Module:     "acme/money",
		Name:       "Money",
		FullName:   "acme.type.Money",
		ImportPath: "acme/type/money.proto",
	}}, conf.Types)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	conf, err := Load(fs, DefaultFile, false)
	require.NoError(t, err)
	assert.Equal(t, Config{}, conf)

	_, err = Load(fs, "custom.yaml", true)
	require.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultFile, []byte("rot: x\n"), 0o644))
	_, err := Load(fs, DefaultFile, true)
	require.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultFile, nil, 0o644))
	conf, err := Load(fs, DefaultFile, true)
	require.NoError(t, err)
	assert.Equal(t, Config{}, conf)
}

func TestFromEnv(t *testing.T) {
	t.Parallel()

	conf, err := FromEnv(env(map[string]string{
		"TROTO_ROOT":       "src",
		"TROTO_PROTO_PATH": "a,b",
		"TROTO_CHECK":      "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("src"), conf.Root)
	assert.Equal(t, []string{"a", "b"}, conf.ProtoPaths)
	assert.Equal(t, null.BoolFrom(true), conf.Check)
	assert.False(t, conf.Out.Valid)

	_, err = FromEnv(env(map[string]string{"TROTO_CHECK": "maybe"}))
	require.Error(t, err)
}

func TestApply(t *testing.T) {
	t.Parallel()

	base := NewConfig()
	assert.Equal(t, ".", base.Root.String)
	assert.Equal(t, DefaultIgnore, base.Ignore.String)

	conf := base.Apply(Config{Out: null.StringFrom("gen")})
	assert.Equal(t, ".", conf.Root.String)
	assert.Equal(t, "gen", conf.Out.String)

	conf = conf.Apply(Config{Check: null.BoolFrom(false), ProtoPaths: []string{"x"}})
	assert.True(t, conf.Check.Valid)
	assert.False(t, conf.Check.Bool)
	assert.Equal(t, []string{"x"}, conf.ProtoPaths)
}

func TestConsolidatePrecedence(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultFile, []byte(sampleYAML), 0o644))

	conf, err := Consolidate(fs, DefaultFile, false,
		env(map[string]string{"TROTO_OUT": "env-out", "TROTO_ROOT": "env-root"}),
		Config{Root: null.StringFrom("flag-root")},
	)
	require.NoError(t, err)
	assert.Equal(t, "flag-root", conf.Root.String, "flags beat the environment")
	assert.Equal(t, "env-out", conf.Out.String, "the environment beats the file")
	assert.Equal(t, []string{"third_party", "vendor"}, conf.ProtoPaths)
	assert.True(t, conf.Check.Bool)
	assert.Equal(t, DefaultIgnore, conf.Ignore.String)

	table := conf.TypeTable()
	ty, ok := table.Lookup("acme/money", "Money")
	require.True(t, ok)
	assert.Equal(t, "acme.type.Money", ty.FullName)
	_, ok = table.Lookup(wellknown.ModulePrefix+"google/protobuf/timestamp", "Timestamp")
	assert.True(t, ok)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	conf := Config{Types: []wellknown.Type{{Module: "m", Name: "N"}}}
	require.Error(t, conf.Validate())
	require.NoError(t, NewConfig().Validate())
}
