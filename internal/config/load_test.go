package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFindConfigFileInStartDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeConfig(t, dir, "[run]\nmode = \"simulation\"\n")

	got, err := FindConfigFile(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindConfigFileWalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	want := writeConfig(t, root, "[run]\nmode = \"simulation\"\n")

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindConfigFileNotFound(t *testing.T) {
	t.Parallel()

	got, err := FindConfigFile(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `
[run]
mode = "real"
stop_on_first_failure = true
flows = ["flows/**/*.toml", "extra/*.toml"]

[server]
listen = "0.0.0.0:9090"

[systems.api]
base_url = "http://localhost:3000"
timeout = "45s"

[systems.database]
dsn = "postgres://localhost/terminal"
`)

	cfg, md, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "real", cfg.Run.Mode)
	assert.True(t, cfg.Run.StopOnFirstFailure)
	assert.Equal(t, []string{"flows/**/*.toml", "extra/*.toml"}, cfg.Run.Flows)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Listen)
	assert.Equal(t, "http://localhost:3000", cfg.Systems["api"].BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Systems["api"].Timeout.Duration)
	assert.Equal(t, "postgres://localhost/terminal", cfg.Systems["database"].DSN)
	assert.Empty(t, md.Undecoded())
}

func TestLoadFromFileRecordsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `
[run]
mode = "simulation"
typo_key = true
`)

	_, md, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, md.Undecoded(), 1)
	assert.Equal(t, "run.typo_key", md.Undecoded()[0].String())
}

func TestLoadFromFileInvalidTimeout(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `
[systems.api]
timeout = "not-a-duration"
`)

	_, _, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	_, _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestDurationOrDefault(t *testing.T) {
	t.Parallel()

	var d Duration
	assert.Equal(t, 30*time.Second, d.OrDefault(30*time.Second))

	d.Duration = time.Minute
	assert.Equal(t, time.Minute, d.OrDefault(30*time.Second))
}
