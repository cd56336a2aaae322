package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
	"github.com/gantrylabs/gantry/internal/jsonutil"
)

// ErrRunActive is returned when Execute or Reset is called while a run is in
// progress.
var ErrRunActive = errors.New("a run is already active")

// MetricsRecorder receives execution counters. A nil recorder disables
// metrics entirely.
type MetricsRecorder interface {
	RunStarted(mode string)
	RunCompleted(status string, seconds float64)
	StageCompleted(status string)
	ActionExecuted(success bool)
	VerificationEvaluated(passed bool)
}

// Executor drives flow definitions against an adapter registry. All engine
// work happens on the single goroutine that called Execute; the mutex exists
// only so observers (CLI, web driver) can read snapshots and set the abort
// flag from other goroutines.
type Executor struct {
	registry           *adapter.Registry
	mode               adapter.Mode
	stopOnFirstFailure bool
	screenshotDir      string
	logger             *log.Logger
	metrics            MetricsRecorder

	mu        sync.Mutex
	state     *State
	running   bool
	aborted   bool
	listeners map[int]func(State)
	nextID    int
}

// Option configures the Executor.
type Option func(*Executor)

// WithMode sets the execution mode recorded on every run. Default
// ModeSimulation.
func WithMode(mode adapter.Mode) Option {
	return func(e *Executor) { e.mode = mode }
}

// WithStopOnFirstFailure makes the run settle as failed as soon as any stage
// fails, skipping all later stages.
func WithStopOnFirstFailure(stop bool) Option {
	return func(e *Executor) { e.stopOnFirstFailure = stop }
}

// WithScreenshotDir sets the directory passed to screenshot-capable adapters
// as part of the artifact label. Empty disables screenshot capture.
func WithScreenshotDir(dir string) Option {
	return func(e *Executor) { e.screenshotDir = dir }
}

// WithLogger attaches a structured logger. When nil the executor still
// records state log entries but emits nothing to the process log.
func WithLogger(logger *log.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics attaches a metrics recorder. Nil disables metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor over the given registry. The registry must
// not be nil.
func NewExecutor(registry *adapter.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry:  registry,
		mode:      adapter.ModeSimulation,
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = newState(e.mode)
	return e
}

// Mode returns the execution mode.
func (e *Executor) Mode() adapter.Mode {
	return e.mode
}

// State returns a deep-copy snapshot of the current run state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Subscribe registers a listener invoked with a state snapshot after every
// state-affecting operation. The returned function removes exactly this
// registration. Listeners are invoked synchronously on the executor's
// goroutine, in no particular order relative to each other.
func (e *Executor) Subscribe(fn func(State)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Abort requests that the run stop advancing. The flag is checked at stage
// and action/verification boundaries; an adapter call already in flight is
// allowed to settle. The run then finalizes as failed.
func (e *Executor) Abort() {
	e.mu.Lock()
	e.aborted = true
	e.mu.Unlock()
}

// Reset restores the executor to idle: empty results, captured data, and
// logs, with the abort flag cleared. It fails with ErrRunActive while a run
// is in progress.
func (e *Executor) Reset() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrRunActive
	}
	e.aborted = false
	e.state = newState(e.mode)
	e.mu.Unlock()

	e.notify()
	return nil
}

// Execute runs one flow definition to a terminal status and returns the
// final state snapshot. Only one run may be active at a time; a second
// concurrent call fails with ErrRunActive. The run's pass/fail outcome is
// conveyed through the returned state's Status, not through the error.
func (e *Executor) Execute(ctx context.Context, def *flow.Definition) (final State, err error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return State{}, ErrRunActive
	}
	e.running = true
	e.aborted = false
	e.state = newState(e.mode)
	e.state.RunID = uuid.NewString()
	e.state.FlowName = def.Name
	e.state.Fingerprint = def.Fingerprint()
	e.state.Status = StatusRunning
	e.state.StartedAt = time.Now()
	e.mu.Unlock()

	e.logInfo("", "run started", "flow", def.Name, "mode", e.mode)
	if e.metrics != nil {
		e.metrics.RunStarted(string(e.mode))
	}

	// The order is computed once per run; resolver warnings become part of
	// the run record.
	order, warnings := flow.Resolve(def.Stages)
	for _, w := range warnings {
		e.mu.Lock()
		e.state.Warnings = append(e.state.Warnings, w.String())
		e.mu.Unlock()
		e.logWarn(w.Stage, w.Message)
	}

	// Every exit path, panic included, resolves through this deferred block:
	// cleanup runs, the end timestamp is recorded, and the final snapshot is
	// what the caller receives.
	defer func() {
		if r := recover(); r != nil {
			e.logError("", "run panicked", "panic", r)
		}
		e.finalize(ctx, def.Name)
		final = e.State()
		err = nil
	}()

	if initErr := e.registry.Initialize(ctx); initErr != nil {
		e.logError("", "adapter initialization failed", "error", initErr)
		e.setStatus(StatusFailed)
		return
	}

	for _, stage := range order {
		if e.isAborted() {
			e.logWarn("", "run aborted before stage "+stage.ID)
			e.setStatus(StatusFailed)
			break
		}

		result := e.executeStage(ctx, stage)

		if result.Status == StageFailed && e.stopOnFirstFailure {
			e.logError(stage.ID, "stage failed; stopping on first failure")
			e.setStatus(StatusFailed)
			break
		}
	}

	e.mu.Lock()
	if e.aborted && e.state.Status == StatusRunning {
		e.state.Status = StatusFailed
	}
	if e.state.Status == StatusRunning {
		e.state.Status = StatusPassed
	}
	e.mu.Unlock()
	e.notify()

	return
}

// finalize always runs at the end of Execute: adapter cleanup, end
// timestamp, summary log, metrics. Cleanup uses a context that survives
// cancellation of the run context so aborted runs still release resources.
func (e *Executor) finalize(ctx context.Context, flowName string) {
	if err := e.registry.Cleanup(context.WithoutCancel(ctx)); err != nil {
		e.logError("", "adapter cleanup reported errors", "error", err)
	}

	e.mu.Lock()
	if e.state.Status == StatusRunning {
		// A panic escaping the stage loop lands here; the run must still
		// settle in a terminal state.
		e.state.Status = StatusFailed
	}
	e.state.CurrentStage = ""
	e.state.EndedAt = time.Now()
	summary := e.state.Summarize()
	e.running = false
	e.mu.Unlock()

	e.appendLog("info", "", fmt.Sprintf(
		"run finished: %s (%d/%d stages passed in %s)",
		summary.Status, summary.Passed, summary.Total, summary.Duration.Round(time.Millisecond),
	))
	e.logInfo("", "run finished",
		"flow", flowName,
		"status", summary.Status,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	if e.metrics != nil {
		e.metrics.RunCompleted(string(summary.Status), summary.Duration.Seconds())
	}
}

// executeStage runs one stage to completion: actions in order until the
// first failure, then every verification regardless of earlier verification
// outcomes, then an optional screenshot. Unexpected adapter faults are
// converted into a stage-level error.
func (e *Executor) executeStage(ctx context.Context, stage flow.Stage) *StageResult {
	result := &StageResult{
		StageID:       stage.ID,
		Name:          stage.Name,
		System:        stage.System,
		Status:        StageRunning,
		Actions:       []adapter.ActionResult{},
		Verifications: []adapter.VerificationResult{},
		Captured:      map[string]any{},
		StartedAt:     time.Now(),
	}

	e.mu.Lock()
	e.state.CurrentStage = stage.ID
	e.state.Order = append(e.state.Order, stage.ID)
	e.state.Results[stage.ID] = result
	e.mu.Unlock()
	e.notify()
	e.logInfo(stage.ID, "stage started", "system", stage.System)

	ad, err := e.registry.Get(stage.System)
	if err != nil {
		e.failStage(result, err)
		return result
	}

	rctx := e.runContext()
	actionsPassed := true

	for _, action := range stage.Actions {
		if e.isAborted() {
			actionsPassed = false
			break
		}

		res, actErr := e.safeExecuteAction(ctx, ad, action, rctx)
		if actErr != nil {
			res = adapter.ActionResult{
				Name:    action.Name,
				Success: false,
				Error:   actErr.Error(),
			}
			result.Error = actErr.Error()
		}
		if res.Name == "" {
			res.Name = action.Name
		}

		e.mu.Lock()
		result.Actions = append(result.Actions, res)
		if res.Success {
			// Shallow merge, later writes win, into both the stage slice
			// and the flow-wide map. rctx shares the flow-wide map, so
			// later actions and verifications see the update immediately.
			jsonutil.Merge(result.Captured, res.Captured)
			jsonutil.Merge(e.state.Captured, res.Captured)
		}
		e.mu.Unlock()
		e.notify()

		if e.metrics != nil {
			e.metrics.ActionExecuted(res.Success)
		}

		if !res.Success {
			e.logError(stage.ID, "action failed", "action", action.Name, "error", res.Error)
			actionsPassed = false
			break
		}
		e.logInfo(stage.ID, "action completed", "action", action.Name)
	}

	verificationsPassed := true
	if actionsPassed {
		for _, v := range stage.Verifications {
			if e.isAborted() {
				// Skipped verifications cannot vouch for the stage.
				verificationsPassed = false
				break
			}

			res := e.safeVerify(ctx, ad, v, rctx)

			e.mu.Lock()
			result.Verifications = append(result.Verifications, res)
			e.mu.Unlock()
			e.notify()

			if e.metrics != nil {
				e.metrics.VerificationEvaluated(res.Passed)
			}

			// Verification failures never abort the loop; every
			// verification in the stage is attempted.
			if !res.Passed {
				verificationsPassed = false
				e.logError(stage.ID, "verification failed", "reason", res.FailureReason)
			}
		}
	}

	e.captureScreenshot(ctx, ad, stage, result)

	status := StagePassed
	if !actionsPassed || !verificationsPassed || result.Error != "" {
		status = StageFailed
	}

	e.mu.Lock()
	result.Status = status
	result.EndedAt = time.Now()
	e.mu.Unlock()
	e.notify()

	if e.metrics != nil {
		e.metrics.StageCompleted(string(status))
	}
	e.logInfo(stage.ID, "stage finished", "status", status)
	return result
}

// failStage marks a stage failed with a stage-level error before any action
// ran (missing adapter, wiring faults).
func (e *Executor) failStage(result *StageResult, err error) {
	e.mu.Lock()
	result.Status = StageFailed
	result.Error = err.Error()
	result.EndedAt = time.Now()
	e.mu.Unlock()
	e.notify()
	e.logError(result.StageID, "stage failed", "error", err)

	if e.metrics != nil {
		e.metrics.StageCompleted(string(StageFailed))
	}
}

// captureScreenshot records a visual artifact for UI-bearing stages when the
// adapter advertises the capability. Screenshot failures are logged, never
// fatal.
func (e *Executor) captureScreenshot(ctx context.Context, ad adapter.Adapter, stage flow.Stage, result *StageResult) {
	if e.screenshotDir == "" || !stage.System.UIBearing() {
		return
	}
	sc, ok := ad.(adapter.Screenshotter)
	if !ok {
		return
	}

	e.mu.Lock()
	label := fmt.Sprintf("%s/%s-%s", e.screenshotDir, e.state.RunID, stage.ID)
	e.mu.Unlock()

	path, err := sc.Screenshot(ctx, label)
	if err != nil {
		e.logWarn(stage.ID, "screenshot failed: "+err.Error())
		return
	}
	if path == "" {
		return
	}

	e.mu.Lock()
	result.Screenshot = path
	e.mu.Unlock()
	e.notify()
}

// safeExecuteAction calls the adapter with panic recovery so a panicking
// adapter becomes a stage-level error rather than crashing the run.
func (e *Executor) safeExecuteAction(ctx context.Context, ad adapter.Adapter, action flow.Action, rctx *adapter.RunContext) (result adapter.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter %q panicked in action %q: %v", ad.System(), action.Name, r)
		}
	}()

	started := time.Now()
	result, err = ad.ExecuteAction(ctx, action, rctx)
	result.Duration = time.Since(started)
	return result, err
}

// safeVerify calls the adapter with panic recovery; a panic is a failed
// verification, honoring the contract that Verify never throws.
func (e *Executor) safeVerify(ctx context.Context, ad adapter.Adapter, v flow.Verification, rctx *adapter.RunContext) (result adapter.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = adapter.VerificationResult{
				Description:   v.Description,
				FailureReason: fmt.Sprintf("adapter %q panicked: %v", ad.System(), r),
			}
		}
	}()

	started := time.Now()
	result = ad.Verify(ctx, v, rctx)
	result.Duration = time.Since(started)
	return result
}

// runContext builds the RunContext handed to adapters. Captured references
// the live flow-wide map: the executor is its only writer and adapter calls
// never overlap engine mutations, so adapters observe a consistent view.
func (e *Executor) runContext() *adapter.RunContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := e.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &adapter.RunContext{
		RunID:    e.state.RunID,
		FlowName: e.state.FlowName,
		Mode:     e.mode,
		Captured: e.state.Captured,
		Logger:   logger,
	}
}

func (e *Executor) isAborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborted
}

func (e *Executor) setStatus(status Status) {
	e.mu.Lock()
	e.state.Status = status
	e.mu.Unlock()
	e.notify()
}

// notify invokes every listener with a fresh snapshot. Listeners are called
// outside the lock so they may safely call State() or Subscribe.
func (e *Executor) notify() {
	e.mu.Lock()
	snapshot := e.state.clone()
	fns := make([]func(State), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// appendLog records a narrative entry on the state and notifies observers.
func (e *Executor) appendLog(level, stage, msg string) {
	e.mu.Lock()
	e.state.Logs = append(e.state.Logs, LogEntry{
		Time:    time.Now(),
		Level:   level,
		Stage:   stage,
		Message: msg,
	})
	e.mu.Unlock()
	e.notify()
}

func (e *Executor) logInfo(stage, msg string, kvs ...any) {
	e.appendLog("info", stage, msg)
	if e.logger != nil {
		e.logger.Info(msg, kvs...)
	}
}

func (e *Executor) logWarn(stage, msg string) {
	e.appendLog("warn", stage, msg)
	if e.logger != nil {
		e.logger.Warn(msg)
	}
}

func (e *Executor) logError(stage, msg string, kvs ...any) {
	e.appendLog("error", stage, msg)
	if e.logger != nil {
		e.logger.Error(msg, kvs...)
	}
}
