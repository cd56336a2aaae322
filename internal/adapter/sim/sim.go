// Package sim implements simulation-mode adapters for every system. All five
// simulators share one in-memory World, so a container registered through
// the api simulator is visible to the database, yard, ui, and mobile
// simulators — flows behave end-to-end without any external service.
//
// Simulators are deterministic: ids are sequential, yard positions are
// derived from the requested slot, and no wall-clock values leak into
// captured data.
package sim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
)

// World is the shared terminal state behind all simulators.
type World struct {
	mu         sync.Mutex
	nextID     int
	containers []map[string]any
	// elements holds UI/mobile element state keyed by target, written by
	// interactions and read by state verifications.
	elements map[string]any
}

// NewWorld returns an empty world. One world is shared across the adapters
// of a run.
func NewWorld() *World {
	return &World{nextID: 1, elements: map[string]any{}}
}

// Reset clears all state, returning the world to its initial condition.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID = 1
	w.containers = nil
	w.elements = map[string]any{}
}

// FailureHook lets a test script an expected failure: return a non-empty
// string to fail the action with that error text.
type FailureHook func(action flow.Action) string

// Adapter simulates one system against the shared world.
type Adapter struct {
	system flow.System
	world  *World
	onFail FailureHook
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithFailureHook installs a scripted failure.
func WithFailureHook(hook FailureHook) Option {
	return func(a *Adapter) { a.onFail = hook }
}

// New creates a simulator for the given system over the shared world.
func New(world *World, system flow.System, opts ...Option) *Adapter {
	a := &Adapter{system: system, world: world}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAll creates one simulator per system, all sharing world.
func NewAll(world *World, opts ...Option) []*Adapter {
	adapters := make([]*Adapter, 0, len(flow.Systems))
	for _, system := range flow.Systems {
		adapters = append(adapters, New(world, system, opts...))
	}
	return adapters
}

func (a *Adapter) System() flow.System { return a.system }

// Initialize is a no-op; the world is ready on construction.
func (a *Adapter) Initialize(_ context.Context) error { return nil }

// Cleanup is a no-op; the world outlives the run so drivers can inspect it.
func (a *Adapter) Cleanup(_ context.Context) error { return nil }

// ExecuteAction simulates one action against the world.
func (a *Adapter) ExecuteAction(_ context.Context, action flow.Action, _ *adapter.RunContext) (adapter.ActionResult, error) {
	if a.onFail != nil {
		if msg := a.onFail(action); msg != "" {
			return adapter.ActionResult{Name: action.Name, Success: false, Error: msg}, nil
		}
	}

	result := adapter.ActionResult{Name: action.Name, Success: true}
	var captured any

	switch action.Type {
	case flow.ActionAPIRequest:
		captured = a.world.apiRequest(action)
	case flow.ActionDBQuery:
		captured = a.world.dbQuery(action)
	case flow.ActionYardOperation:
		var err error
		captured, err = a.world.yardOperation(action)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			return result, nil
		}
	case flow.ActionUIInteraction, flow.ActionMobileInteraction:
		captured = a.world.interact(action)
	default:
		return adapter.ActionResult{}, fmt.Errorf("sim: unknown action type %q", action.Type)
	}

	if action.Capture != "" {
		result.Captured = map[string]any{action.Capture: captured}
	}
	return result, nil
}

// Verify evaluates a verification against captured data or the world.
func (a *Adapter) Verify(_ context.Context, v flow.Verification, rctx *adapter.RunContext) adapter.VerificationResult {
	if v.Type == flow.VerifyResponse {
		return adapter.EvaluateCaptured(v, rctx)
	}

	var (
		observed any
		present  bool
	)
	switch v.Type {
	case flow.VerifyDBState:
		rows := a.world.dbQueryRows(v.Query, v.Args)
		switch v.Operator {
		case flow.OpCountEquals, flow.OpCountGreater, flow.OpCountLess:
			observed, present = rows, true
		default:
			if len(rows) > 0 {
				observed, present = firstColumn(rows[0]), true
			}
		}
	case flow.VerifyYardState:
		observed, present = a.world.yardPosition(v.Target)
	case flow.VerifyUIState, flow.VerifyMobileState:
		observed, present = a.world.element(v.Target)
	default:
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: fmt.Sprintf("sim: unknown verification type %q", v.Type),
		}
	}

	return adapter.EvaluateOperator(v, observed, present)
}

// Screenshot writes a placeholder artifact so runs exercise the screenshot
// path without a real renderer.
func (a *Adapter) Screenshot(_ context.Context, label string) (string, error) {
	if !a.system.UIBearing() {
		return "", nil
	}
	path := label + ".png"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	content := fmt.Sprintf("simulated %s screenshot: %s\n", a.system, filepath.Base(label))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// --- World behavior ---

// apiRequest simulates the terminal REST API. POST creates a container
// record from the body with a sequential id; GET returns the current
// container list; other methods echo the body.
func (w *World) apiRequest(action flow.Action) any {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch strings.ToUpper(action.Method) {
	case "POST":
		record := map[string]any{"id": w.nextID}
		for k, v := range action.Body {
			record[k] = v
		}
		w.nextID++
		w.containers = append(w.containers, record)
		return record
	case "GET":
		return append([]map[string]any(nil), w.containers...)
	default:
		if action.Body == nil {
			return map[string]any{}
		}
		return action.Body
	}
}

// dbQuery simulates a SQL query against the container table. If an argument
// is given, rows are filtered to containers with any field equal to the
// first argument.
func (w *World) dbQuery(action flow.Action) any {
	rows := w.dbQueryRows(action.Query, action.Args)
	if len(rows) == 1 {
		return rows[0]
	}
	return rows
}

func (w *World) dbQueryRows(_ string, args []any) []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	var rows []map[string]any
	for _, c := range w.containers {
		if len(args) == 0 || matchesAny(c, args[0]) {
			rows = append(rows, c)
		}
	}
	return rows
}

// yardOperation places or moves a container. The position is derived from
// the requested slot, so repeated runs produce identical captures.
func (w *World) yardOperation(action flow.Action) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	record := w.findContainer(action.ContainerID)
	if record == nil {
		return nil, fmt.Errorf("container %q not in yard inventory", action.ContainerID)
	}

	switch action.Operation {
	case "place", "move", "restack":
		position := fmt.Sprintf("B%02d-R%02d-T%02d", action.Bay, action.Row, action.Tier)
		record["position"] = position
		return map[string]any{"container_id": action.ContainerID, "position": position}, nil
	case "inspect":
		return record, nil
	case "remove":
		delete(record, "position")
		return map[string]any{"container_id": action.ContainerID}, nil
	default:
		return nil, fmt.Errorf("unknown yard operation %q", action.Operation)
	}
}

func (w *World) yardPosition(containerID string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	record := w.findContainer(containerID)
	if record == nil {
		return nil, false
	}
	position, ok := record["position"]
	return position, ok
}

// interact records a UI or mini-app interaction: the target element takes
// the interaction's value (or the gesture name for value-less gestures).
func (w *World) interact(action flow.Action) any {
	w.mu.Lock()
	defer w.mu.Unlock()

	value := action.Value
	if value == "" {
		value = action.Gesture
	}
	if action.Target != "" {
		w.elements[action.Target] = value
	}
	return map[string]any{"target": action.Target, "value": value}
}

func (w *World) element(target string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.elements[target]
	return v, ok
}

// findContainer matches by container_number or simulated id. Caller holds
// the lock.
func (w *World) findContainer(id string) map[string]any {
	for _, c := range w.containers {
		if fmt.Sprint(c["container_number"]) == id || fmt.Sprint(c["id"]) == id {
			return c
		}
	}
	return nil
}

func matchesAny(record map[string]any, want any) bool {
	for _, v := range record {
		if fmt.Sprint(v) == fmt.Sprint(want) {
			return true
		}
	}
	return false
}

func firstColumn(row map[string]any) any {
	if len(row) == 1 {
		for _, v := range row {
			return v
		}
	}
	return row
}
