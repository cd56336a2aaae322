package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap builds an EnvFunc over a fixed map.
func envMap(vars map[string]string) EnvFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestResolveDefaultsOnly(t *testing.T) {
	t.Parallel()

	rc := Resolve(NewDefaults(), nil, nil, nil)

	assert.Equal(t, "simulation", rc.Config.Run.Mode)
	assert.True(t, rc.Config.Run.Headless)
	assert.False(t, rc.Config.Run.StopOnFirstFailure)
	assert.Equal(t, []string{"flows/**/*.toml"}, rc.Config.Run.Flows)
	assert.Equal(t, "127.0.0.1:8844", rc.Config.Server.Listen)
	assert.Equal(t, SourceDefault, rc.Sources["run.mode"])
	assert.Equal(t, SourceDefault, rc.Sources["server.listen"])
}

func TestResolveFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	file := &Config{
		Run: RunConfig{
			Mode:               "real",
			StopOnFirstFailure: true,
			Flows:              []string{"e2e/*.toml"},
		},
		Systems: map[string]SystemConfig{
			"api": {BaseURL: "http://api.test:3000"},
		},
	}

	rc := Resolve(NewDefaults(), file, nil, nil)

	assert.Equal(t, "real", rc.Config.Run.Mode)
	assert.True(t, rc.Config.Run.StopOnFirstFailure)
	assert.Equal(t, []string{"e2e/*.toml"}, rc.Config.Run.Flows)
	assert.Equal(t, "http://api.test:3000", rc.Config.Systems["api"].BaseURL)
	assert.Equal(t, SourceFile, rc.Sources["run.mode"])
	assert.Equal(t, SourceFile, rc.Sources["systems.api.base_url"])

	// Untouched values keep their default source.
	assert.Equal(t, "127.0.0.1:8844", rc.Config.Server.Listen)
	assert.Equal(t, SourceDefault, rc.Sources["server.listen"])
}

func TestResolveEmptyFileStringDoesNotOverride(t *testing.T) {
	t.Parallel()

	file := &Config{Run: RunConfig{Mode: ""}}
	rc := Resolve(NewDefaults(), file, nil, nil)

	assert.Equal(t, "simulation", rc.Config.Run.Mode)
	assert.Equal(t, SourceDefault, rc.Sources["run.mode"])
}

func TestResolveEnvOverridesFile(t *testing.T) {
	t.Parallel()

	file := &Config{Run: RunConfig{Mode: "real"}}
	env := envMap(map[string]string{
		"GANTRY_MODE":         "simulation",
		"GANTRY_API_URL":      "http://staging:3000",
		"GANTRY_DATABASE_DSN": "postgres://staging/terminal",
		"GANTRY_LISTEN":       "0.0.0.0:9000",
	})

	rc := Resolve(NewDefaults(), file, env, nil)

	assert.Equal(t, "simulation", rc.Config.Run.Mode)
	assert.Equal(t, SourceEnv, rc.Sources["run.mode"])
	assert.Equal(t, "http://staging:3000", rc.Config.Systems["api"].BaseURL)
	assert.Equal(t, "postgres://staging/terminal", rc.Config.Systems["database"].DSN)
	assert.Equal(t, "0.0.0.0:9000", rc.Config.Server.Listen)
	assert.Equal(t, SourceEnv, rc.Sources["systems.database.dsn"])
}

func TestResolveCLIWinsOverEverything(t *testing.T) {
	t.Parallel()

	file := &Config{Run: RunConfig{Mode: "real", StopOnFirstFailure: false}}
	env := envMap(map[string]string{"GANTRY_MODE": "real"})
	overrides := &CLIOverrides{
		Mode:               strPtr("simulation"),
		StopOnFirstFailure: boolPtr(true),
		Headless:           boolPtr(false),
		Listen:             strPtr("localhost:7777"),
		Flows:              []string{"only/this.toml"},
	}

	rc := Resolve(NewDefaults(), file, env, overrides)

	assert.Equal(t, "simulation", rc.Config.Run.Mode)
	assert.True(t, rc.Config.Run.StopOnFirstFailure)
	assert.False(t, rc.Config.Run.Headless)
	assert.Equal(t, "localhost:7777", rc.Config.Server.Listen)
	assert.Equal(t, []string{"only/this.toml"}, rc.Config.Run.Flows)
	assert.Equal(t, SourceCLI, rc.Sources["run.mode"])
	assert.Equal(t, SourceCLI, rc.Sources["run.flows"])
}

func TestResolveNilInputs(t *testing.T) {
	t.Parallel()

	rc := Resolve(nil, nil, nil, nil)
	require.NotNil(t, rc.Config)
	require.NotNil(t, rc.Config.Systems)
	assert.Empty(t, rc.Config.Run.Mode)
}

func TestResolveDoesNotAliasDefaultSlices(t *testing.T) {
	t.Parallel()

	defaults := NewDefaults()
	rc := Resolve(defaults, nil, nil, nil)

	rc.Config.Run.Flows[0] = "mutated"
	assert.Equal(t, "flows/**/*.toml", defaults.Run.Flows[0])
}
