package e2e_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject is an isolated project directory with a gantry binary.
type testProject struct {
	Dir        string
	BinaryPath string
	t          *testing.T
}

var (
	buildOnce sync.Once
	buildBin  string
	buildErr  error
)

// newTestProject builds the gantry binary once per test run and returns a
// fresh temp project directory wired to it.
func newTestProject(t *testing.T) *testProject {
	t.Helper()

	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "gantry-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		buildBin = filepath.Join(dir, "gantry")
		build := exec.Command("go", "build", "-o", buildBin, "./cmd/gantry")
		build.Dir = projectRoot()
		out, err := build.CombinedOutput()
		if err != nil {
			buildErr = errors.New("building gantry: " + err.Error() + "\n" + string(out))
		}
	})
	require.NoError(t, buildErr)

	return &testProject{Dir: t.TempDir(), BinaryPath: buildBin, t: t}
}

// projectRoot returns the absolute path to the root of the repository.
// It uses runtime.Caller(0) to find this source file's location and navigates
// two directories up (tests/e2e/ -> tests/ -> repo root).
func projectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// writeConfig writes content to gantry.toml in tp.Dir.
func (tp *testProject) writeConfig(content string) {
	tp.t.Helper()
	err := os.WriteFile(filepath.Join(tp.Dir, "gantry.toml"), []byte(content), 0o644)
	require.NoError(tp.t, err)
}

// writeFlow writes a flow definition to flows/<name>.toml.
func (tp *testProject) writeFlow(name, content string) {
	tp.t.Helper()
	flowsDir := filepath.Join(tp.Dir, "flows")
	require.NoError(tp.t, os.MkdirAll(flowsDir, 0o755))
	err := os.WriteFile(filepath.Join(flowsDir, name+".toml"), []byte(content), 0o644)
	require.NoError(tp.t, err)
}

// run creates an exec.Cmd for gantry rooted in the project dir.
func (tp *testProject) run(args ...string) *exec.Cmd {
	cmd := exec.Command(tp.BinaryPath, args...)
	cmd.Dir = tp.Dir
	cmd.Env = append(os.Environ(),
		"NO_COLOR=1",             // disable ANSI color in output
		"GANTRY_LOG_FORMAT=json", // structured logs for easier parsing
	)
	return cmd
}

// runExpectSuccess runs gantry and asserts exit code 0.
// Returns combined stdout+stderr output.
func (tp *testProject) runExpectSuccess(args ...string) string {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.NoError(tp.t, err, "gantry %v failed:\n%s", args, string(out))
	return string(out)
}

// runExpectFailure runs gantry and asserts a non-zero exit code.
// Returns combined output and the exit code.
func (tp *testProject) runExpectFailure(args ...string) (string, int) {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.Error(tp.t, err, "gantry %v expected to fail but succeeded:\n%s", args, string(out))
	var exitErr *exec.ExitError
	require.True(tp.t, errors.As(err, &exitErr), "expected *exec.ExitError, got %T: %v", err, err)
	return string(out), exitErr.ExitCode()
}

// simulationConfig is a minimal config that runs flows against simulators.
const simulationConfig = `
[run]
mode = "simulation"
flows = ["flows/**/*.toml"]
`

// importFlow registers a container over the API and places it in the yard.
const importFlow = `
name = "import-container"

[[stages]]
id = "register"
name = "Register container"
system = "api"

[[stages.actions]]
type = "api_request"
name = "create-container"
method = "POST"
path = "/api/containers"
capture = "container"

[stages.actions.body]
container_number = "HLXU3456789"
status = "announced"

[[stages.verifications]]
type = "response"
description = "id assigned"
field = "container.id"
operator = "exists"

[[stages]]
id = "place"
name = "Place in yard"
system = "yard"
depends_on = ["register"]

[[stages.actions]]
type = "yard_operation"
name = "place-container"
operation = "place"
container_id = "HLXU3456789"
bay = 2
row = 3
tier = 1

[[stages.verifications]]
type = "yard_state"
description = "positioned"
target = "HLXU3456789"
operator = "equals"
expected = "B02-R03-T01"
`

// brokenVerificationFlow always fails its verification.
const brokenVerificationFlow = `
name = "broken-verification"

[[stages]]
id = "register"
name = "Register container"
system = "api"

[[stages.actions]]
type = "api_request"
name = "create-container"
method = "POST"
path = "/api/containers"
capture = "container"

[stages.actions.body]
container_number = "HLXU0000000"

[[stages.verifications]]
type = "response"
description = "field that never exists"
field = "container.vessel.imo"
operator = "exists"
`
