// Package engine implements the flow executor: a state machine that drives a
// resolved stage order against registered adapters, accumulates per-stage
// results and flow-wide captured data, and publishes state snapshots to
// subscribers. The executor is the sole mutator of run state; observers only
// ever see copies.
package engine

import (
	"time"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
	"github.com/gantrylabs/gantry/internal/jsonutil"
)

// Status is the overall run status.
type Status string

const (
	// StatusIdle is the initial and post-Reset state.
	StatusIdle Status = "idle"

	// StatusRunning means Execute is in progress.
	StatusRunning Status = "running"

	// StatusPassed and StatusFailed are the terminal run states.
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// StageStatus is the status of a single stage result.
type StageStatus string

const (
	StageRunning StageStatus = "running"
	StagePassed  StageStatus = "passed"
	StageFailed  StageStatus = "failed"
)

// StageResult accumulates the outcome of one stage while it executes. It is
// owned exclusively by the executor; snapshots hand copies to observers.
type StageResult struct {
	StageID string       `json:"stage_id"`
	Name    string       `json:"name"`
	System  flow.System  `json:"system"`
	Status  StageStatus  `json:"status"`

	// Actions and Verifications hold results in execution order.
	Actions       []adapter.ActionResult       `json:"actions"`
	Verifications []adapter.VerificationResult `json:"verifications"`

	// Captured is the slice of captured data produced by this stage alone.
	Captured map[string]any `json:"captured,omitempty"`

	// Screenshot is the artifact path captured at stage end, when the
	// stage's adapter supports it.
	Screenshot string `json:"screenshot,omitempty"`

	// Error holds a stage-level fault (adapter panic, unexpected error),
	// as opposed to an expected action/verification failure.
	Error string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// LogEntry is one line of the run's narrative trace. The results map is the
// source of truth; logs only narrate.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// State is the single source of truth for one run. The executor mutates it
// in place during Execute; subscribers and accessors receive deep copies.
type State struct {
	RunID       string       `json:"run_id"`
	FlowName    string       `json:"flow_name"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Status      Status       `json:"status"`
	Mode        adapter.Mode `json:"mode"`

	// CurrentStage is the id of the stage being executed, empty outside a
	// stage.
	CurrentStage string `json:"current_stage,omitempty"`

	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`

	// Order lists stage ids in execution order; Results maps each id to its
	// result. Stages never started are absent from both.
	Order   []string                `json:"order"`
	Results map[string]*StageResult `json:"results"`

	// Captured is the flow-wide captured map, the only channel by which one
	// stage's output becomes another stage's input.
	Captured map[string]any `json:"captured"`

	// Warnings holds resolver warnings surfaced at the start of the run.
	Warnings []string `json:"warnings,omitempty"`

	// Logs is the append-only narrative trace.
	Logs []LogEntry `json:"logs"`
}

// newState returns a fresh idle State with empty (non-nil) collections so
// JSON serialization produces [] and {} rather than null.
func newState(mode adapter.Mode) *State {
	return &State{
		Status:   StatusIdle,
		Mode:     mode,
		Order:    []string{},
		Results:  map[string]*StageResult{},
		Captured: map[string]any{},
		Logs:     []LogEntry{},
	}
}

// clone returns a deep copy of the state safe to hand to observers.
func (s *State) clone() State {
	out := *s

	out.Order = append([]string(nil), s.Order...)
	out.Warnings = append([]string(nil), s.Warnings...)
	out.Logs = append([]LogEntry(nil), s.Logs...)
	out.Captured = jsonutil.CloneMap(s.Captured)

	out.Results = make(map[string]*StageResult, len(s.Results))
	for id, r := range s.Results {
		copied := *r
		copied.Actions = append([]adapter.ActionResult(nil), r.Actions...)
		copied.Verifications = append([]adapter.VerificationResult(nil), r.Verifications...)
		copied.Captured = jsonutil.CloneMap(r.Captured)
		for i := range copied.Actions {
			copied.Actions[i].Captured = jsonutil.CloneMap(copied.Actions[i].Captured)
		}
		out.Results[id] = &copied
	}
	return out
}

// Summary condenses a terminal state for drivers: stage counts by status and
// total duration.
type Summary struct {
	Status   Status        `json:"status"`
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Summarize computes the run summary from the current state.
func (s *State) Summarize() Summary {
	sum := Summary{Status: s.Status, Total: len(s.Order)}
	for _, id := range s.Order {
		switch s.Results[id].Status {
		case StagePassed:
			sum.Passed++
		case StageFailed:
			sum.Failed++
		}
	}
	if !s.StartedAt.IsZero() && !s.EndedAt.IsZero() {
		sum.Duration = s.EndedAt.Sub(s.StartedAt)
	}
	return sum
}
