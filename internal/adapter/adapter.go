// Package adapter defines the contract between the flow engine and the
// systems it drives. The engine resolves one Adapter per stage system through
// a Registry and delegates every action and verification to it; everything
// protocol-specific (HTTP, browser automation, SQL) lives behind this
// boundary. Concrete implementations ship in the subpackages httpapi,
// uibridge, database, and sim.
package adapter

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gantrylabs/gantry/internal/flow"
)

// Mode selects whether adapters talk to real systems or to deterministic
// simulators.
type Mode string

const (
	// ModeReal drives the live systems configured in gantry.toml.
	ModeReal Mode = "real"

	// ModeSimulation drives in-memory simulators; no external system is
	// touched.
	ModeSimulation Mode = "simulation"
)

// Valid reports whether m is a known execution mode.
func (m Mode) Valid() bool {
	return m == ModeReal || m == ModeSimulation
}

// RunContext carries per-run data into every adapter call. Captured is the
// flow-wide captured map owned by the engine; adapters read it (e.g. to
// substitute previously captured identifiers) but must not write to it —
// action output flows back through ActionResult.Captured instead.
type RunContext struct {
	// RunID uniquely identifies the run.
	RunID string

	// FlowName is the name of the executing flow definition.
	FlowName string

	// Mode is the execution mode the run was started with.
	Mode Mode

	// Captured is the flow-wide captured data accumulated so far.
	Captured map[string]any

	// Logger is the run-scoped logger. Never nil.
	Logger *log.Logger
}

// ActionResult is the immutable outcome of one action. Expected business
// failures (HTTP 4xx, element not found) are encoded as Success=false with a
// populated Error; they are not Go errors.
type ActionResult struct {
	// Name echoes the action's name for reporting.
	Name string `json:"name"`

	// Success reports whether the action achieved its effect.
	Success bool `json:"success"`

	// Error holds the failure description when Success is false.
	Error string `json:"error,omitempty"`

	// Captured holds data produced by the action, merged by the engine into
	// the stage and flow-wide captured maps under the action's capture key.
	Captured map[string]any `json:"captured,omitempty"`

	// Duration is stamped by the engine around the adapter call.
	Duration time.Duration `json:"duration"`
}

// VerificationResult is the immutable outcome of one verification.
type VerificationResult struct {
	// Description echoes the verification's description for reporting.
	Description string `json:"description"`

	// Passed reports whether the assertion held.
	Passed bool `json:"passed"`

	// FailureReason explains why the assertion failed. Empty when Passed.
	FailureReason string `json:"failure_reason,omitempty"`

	// Duration is stamped by the engine around the adapter call.
	Duration time.Duration `json:"duration"`
}

// Adapter is the contract every target-system driver satisfies. The engine
// guarantees Initialize is called before any ExecuteAction/Verify and that
// Cleanup is called exactly once per run for every registered adapter,
// regardless of outcome.
type Adapter interface {
	// System returns the system identifier this adapter serves.
	System() flow.System

	// Initialize performs one-time setup (open a session, dial a pool). A
	// returned error aborts the whole run before any stage executes.
	Initialize(ctx context.Context) error

	// ExecuteAction performs one action. Expected failures are encoded in
	// the result; a non-nil error signals an unexpected fault, which the
	// engine converts into a failed result and a stage-level error.
	ExecuteAction(ctx context.Context, action flow.Action, rctx *RunContext) (ActionResult, error)

	// Verify evaluates one assertion. It never returns an error: problems
	// evaluating the assertion are themselves a failed verification.
	Verify(ctx context.Context, v flow.Verification, rctx *RunContext) VerificationResult

	// Cleanup releases the adapter's resources. Called exactly once per run,
	// even when Initialize failed or the run aborted.
	Cleanup(ctx context.Context) error
}

// Screenshotter is an optional capability. Adapters for UI-bearing systems
// may implement it; the engine captures a screenshot at the end of each stage
// whose adapter advertises support.
type Screenshotter interface {
	// Screenshot writes a visual artifact for label and returns its path.
	Screenshot(ctx context.Context, label string) (string, error)
}
