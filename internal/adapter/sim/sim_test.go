package sim

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
)

var (
	_ adapter.Adapter       = (*Adapter)(nil)
	_ adapter.Screenshotter = (*Adapter)(nil)
)

func runContext() *adapter.RunContext {
	return &adapter.RunContext{
		Mode:     adapter.ModeSimulation,
		Captured: map[string]any{},
		Logger:   log.New(io.Discard),
	}
}

func registerContainer(t *testing.T, api *Adapter, number string) map[string]any {
	t.Helper()
	res, err := api.ExecuteAction(context.Background(), flow.Action{
		Type:    flow.ActionAPIRequest,
		Name:    "create",
		Method:  "POST",
		Path:    "/api/containers",
		Body:    map[string]any{"container_number": number, "status": "announced"},
		Capture: "container",
	}, runContext())
	require.NoError(t, err)
	require.True(t, res.Success)
	record, ok := res.Captured["container"].(map[string]any)
	require.True(t, ok)
	return record
}

func TestNewAllCoversEverySystem(t *testing.T) {
	t.Parallel()

	adapters := NewAll(NewWorld())
	require.Len(t, adapters, len(flow.Systems))

	seen := map[flow.System]bool{}
	for _, a := range adapters {
		seen[a.System()] = true
	}
	for _, system := range flow.Systems {
		assert.True(t, seen[system], "missing simulator for %s", system)
	}
}

func TestAPICreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	world := NewWorld()
	api := New(world, flow.SystemAPI)

	first := registerContainer(t, api, "MSKU0000001")
	second := registerContainer(t, api, "MSKU0000002")

	assert.Equal(t, 1, first["id"])
	assert.Equal(t, 2, second["id"])
	assert.Equal(t, "announced", first["status"])
}

func TestDatabaseSeesAPIWrites(t *testing.T) {
	t.Parallel()

	world := NewWorld()
	api := New(world, flow.SystemAPI)
	db := New(world, flow.SystemDatabase)

	registerContainer(t, api, "MSKU1234567")

	res, err := db.ExecuteAction(context.Background(), flow.Action{
		Type:    flow.ActionDBQuery,
		Name:    "select",
		Query:   "SELECT * FROM containers WHERE container_number = $1",
		Args:    []any{"MSKU1234567"},
		Capture: "row",
	}, runContext())
	require.NoError(t, err)
	require.True(t, res.Success)

	row, ok := res.Captured["row"].(map[string]any)
	require.True(t, ok, "single-row result captured as a map")
	assert.Equal(t, "announced", row["status"])
}

func TestDBStateVerification(t *testing.T) {
	t.Parallel()

	world := NewWorld()
	api := New(world, flow.SystemAPI)
	db := New(world, flow.SystemDatabase)

	registerContainer(t, api, "MSKU1111111")
	registerContainer(t, api, "MSKU2222222")

	res := db.Verify(context.Background(), flow.Verification{
		Type:     flow.VerifyDBState,
		Query:    "SELECT * FROM containers",
		Operator: flow.OpCountEquals,
		Expected: int64(2),
	}, runContext())
	assert.True(t, res.Passed, res.FailureReason)

	res = db.Verify(context.Background(), flow.Verification{
		Type:     flow.VerifyDBState,
		Query:    "SELECT status FROM containers WHERE container_number = $1",
		Args:     []any{"MSKU9999999"},
		Operator: flow.OpExists,
	}, runContext())
	assert.False(t, res.Passed)

	// An empty row set counts as zero, never as one opaque value.
	res = db.Verify(context.Background(), flow.Verification{
		Type:     flow.VerifyDBState,
		Query:    "SELECT * FROM containers WHERE container_number = $1",
		Args:     []any{"MSKU9999999"},
		Operator: flow.OpCountEquals,
		Expected: int64(1),
	}, runContext())
	assert.False(t, res.Passed)
}

func TestYardPlacementAndVerification(t *testing.T) {
	t.Parallel()

	world := NewWorld()
	api := New(world, flow.SystemAPI)
	yard := New(world, flow.SystemYard)

	registerContainer(t, api, "MSKU1234567")

	res, err := yard.ExecuteAction(context.Background(), flow.Action{
		Type:        flow.ActionYardOperation,
		Name:        "place",
		Operation:   "place",
		ContainerID: "MSKU1234567",
		Bay:         4,
		Row:         2,
		Tier:        1,
		Capture:     "placement",
	}, runContext())
	require.NoError(t, err)
	require.True(t, res.Success)

	placement := res.Captured["placement"].(map[string]any)
	assert.Equal(t, "B04-R02-T01", placement["position"])

	v := yard.Verify(context.Background(), flow.Verification{
		Type:     flow.VerifyYardState,
		Target:   "MSKU1234567",
		Operator: flow.OpEquals,
		Expected: "B04-R02-T01",
	}, runContext())
	assert.True(t, v.Passed, v.FailureReason)
}

func TestYardPlacementUnknownContainerFails(t *testing.T) {
	t.Parallel()

	yard := New(NewWorld(), flow.SystemYard)
	res, err := yard.ExecuteAction(context.Background(), flow.Action{
		Type:        flow.ActionYardOperation,
		Name:        "place",
		Operation:   "place",
		ContainerID: "GHOST",
	}, runContext())

	require.NoError(t, err, "a missing container is a business failure")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "GHOST")
}

func TestUIInteractionAndStateVerification(t *testing.T) {
	t.Parallel()

	world := NewWorld()
	ui := New(world, flow.SystemUI)

	_, err := ui.ExecuteAction(context.Background(), flow.Action{
		Type:    flow.ActionUIInteraction,
		Name:    "fill-search",
		Gesture: "type",
		Target:  "search-box",
		Value:   "MSKU1234567",
	}, runContext())
	require.NoError(t, err)

	res := ui.Verify(context.Background(), flow.Verification{
		Type:     flow.VerifyUIState,
		Target:   "search-box",
		Operator: flow.OpEquals,
		Expected: "MSKU1234567",
	}, runContext())
	assert.True(t, res.Passed, res.FailureReason)

	res = ui.Verify(context.Background(), flow.Verification{
		Type:     flow.VerifyUIState,
		Target:   "error-banner",
		Operator: flow.OpNotExists,
	}, runContext())
	assert.True(t, res.Passed, res.FailureReason)
}

func TestFailureHookScriptsExpectedFailure(t *testing.T) {
	t.Parallel()

	api := New(NewWorld(), flow.SystemAPI, WithFailureHook(func(action flow.Action) string {
		if action.Name == "create" {
			return "duplicate container number"
		}
		return ""
	}))

	res, err := api.ExecuteAction(context.Background(), flow.Action{
		Type:   flow.ActionAPIRequest,
		Name:   "create",
		Method: "POST",
		Path:   "/api/containers",
	}, runContext())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "duplicate container number", res.Error)
}

func TestDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	run := func() map[string]any {
		world := NewWorld()
		api := New(world, flow.SystemAPI)
		return registerContainer(t, api, "MSKU1234567")
	}

	assert.Equal(t, run(), run())
}

func TestWorldReset(t *testing.T) {
	t.Parallel()

	world := NewWorld()
	api := New(world, flow.SystemAPI)
	registerContainer(t, api, "MSKU1234567")

	world.Reset()

	next := registerContainer(t, api, "MSKU7654321")
	assert.Equal(t, 1, next["id"], "ids restart after reset")
}

func TestScreenshotPlaceholder(t *testing.T) {
	t.Parallel()

	ui := New(NewWorld(), flow.SystemUI)
	label := filepath.Join(t.TempDir(), "shots", "run-stage")

	path, err := ui.Screenshot(context.Background(), label)
	require.NoError(t, err)
	assert.Equal(t, label+".png", path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "simulated ui screenshot")

	// Non-UI-bearing simulators produce no artifact.
	db := New(NewWorld(), flow.SystemDatabase)
	path, err = db.Screenshot(context.Background(), label)
	require.NoError(t, err)
	assert.Empty(t, path)
}
