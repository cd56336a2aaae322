package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProject lays out a minimal project (gantry.toml plus flow files) in a
// temp dir and points the global --config flag at it for the test's duration.
func writeProject(t *testing.T, flows ...string) string {
	t.Helper()

	dir := t.TempDir()
	cfg := fmt.Sprintf(`
[run]
mode = "simulation"
flows = ["flows/**/*.toml"]
screenshot_dir = %q
`, filepath.Join(dir, "screenshots"))
	cfgPath := filepath.Join(dir, "gantry.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "flows"), 0o755))

	for i, content := range flows {
		path := filepath.Join(dir, "flows", string(rune('a'+i))+".toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	prev := flagConfig
	flagConfig = cfgPath
	t.Cleanup(func() { flagConfig = prev })

	return dir
}

func TestRunCommandPassesInSimulation(t *testing.T) {
	writeProject(t, passingFlowTOML)

	var out bytes.Buffer
	cmd := newRunCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "sample-import")
	assert.Contains(t, out.String(), "PASS")
	assert.Contains(t, out.String(), "2/2 stages passed")
}

func TestRunCommandReportsFailures(t *testing.T) {
	writeProject(t, failingFlowTOML)

	var out bytes.Buffer
	cmd := newRunCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "had failures")
	assert.Contains(t, out.String(), "FAIL")
}

func TestRunCommandRunsOnlyNamedFlows(t *testing.T) {
	writeProject(t, passingFlowTOML, failingFlowTOML)

	var out bytes.Buffer
	cmd := newRunCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"sample-import"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "sample-import")
	assert.NotContains(t, out.String(), "sample-failing")
}

func TestRunCommandUnknownFlowName(t *testing.T) {
	writeProject(t, passingFlowTOML)

	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"does-not-exist"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunCommandNoFlowsDiscovered(t *testing.T) {
	writeProject(t)

	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no flows matched")
}

func TestRunCommandRejectsInvalidMode(t *testing.T) {
	writeProject(t, passingFlowTOML)

	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--mode", "dry-run"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error(s)")
}
