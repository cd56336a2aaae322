package e2e_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunFlowInSimulation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(simulationConfig)
	tp.writeFlow("import", importFlow)

	out := tp.runExpectSuccess("run")
	assert.Contains(t, out, "import-container")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "2/2 stages passed")
}

func TestRunReportsVerificationFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(simulationConfig)
	tp.writeFlow("broken", brokenVerificationFlow)

	out, code := tp.runExpectFailure("run")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "had failures")
}

func TestRunNamedFlowOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(simulationConfig)
	tp.writeFlow("import", importFlow)
	tp.writeFlow("broken", brokenVerificationFlow)

	out := tp.runExpectSuccess("run", "import-container")
	assert.Contains(t, out, "import-container")
	assert.NotContains(t, out, "broken-verification")
}

func TestFlowsCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(simulationConfig)
	tp.writeFlow("import", importFlow)

	out := tp.runExpectSuccess("flows")
	assert.Contains(t, out, "import-container")
	assert.Contains(t, out, "2 stage(s)")
}

func TestValidateCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(simulationConfig)
	tp.writeFlow("import", importFlow)

	out := tp.runExpectSuccess("validate")
	assert.Contains(t, out, "import-container: ok")
}

func TestValidateRejectsBrokenSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(simulationConfig)
	tp.writeFlow("bad", `
name = "bad"

[[stages]]
id = "only"
name = "Only"
system = "yard"

[[stages.actions]]
type = "yard_operation"
name = "incomplete"
operation = "place"
`)

	out, code := tp.runExpectFailure("validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "container_id")
}
