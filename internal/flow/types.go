// Package flow defines the declarative model for multi-system business
// process flows: a named graph of stages, each tied to one target system and
// carrying an ordered list of actions and verifications. Definitions are
// plain data; execution lives in the engine package, and per-system behavior
// lives behind the adapter contract.
package flow

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// System identifies one of the closed set of target systems a stage can run
// against. Each system is backed by exactly one registered adapter.
type System string

const (
	// SystemAPI is the terminal operating system's HTTP API.
	SystemAPI System = "api"

	// SystemUI is the admin dashboard driven through browser automation.
	SystemUI System = "ui"

	// SystemYard is the 3D yard view driven through browser automation.
	SystemYard System = "yard"

	// SystemMobile is the mobile mini-app driven through webview automation.
	SystemMobile System = "mobile"

	// SystemDatabase is the backing relational database.
	SystemDatabase System = "database"
)

// Systems lists every valid system identifier in a stable order.
var Systems = []System{SystemAPI, SystemUI, SystemYard, SystemMobile, SystemDatabase}

// Valid reports whether s is one of the known system identifiers.
func (s System) Valid() bool {
	for _, known := range Systems {
		if s == known {
			return true
		}
	}
	return false
}

// UIBearing reports whether the system renders a user interface, which makes
// it eligible for screenshot capture at the end of a stage.
func (s System) UIBearing() bool {
	return s == SystemUI || s == SystemYard || s == SystemMobile
}

// ActionType discriminates the Action union. There is one variant per system
// kind; adapters switch exhaustively on the type they receive.
type ActionType string

const (
	// ActionAPIRequest performs one HTTP call against the API system.
	ActionAPIRequest ActionType = "api_request"

	// ActionUIInteraction performs one browser interaction on the dashboard.
	ActionUIInteraction ActionType = "ui_interaction"

	// ActionYardOperation places or moves a container in the 3D yard view.
	ActionYardOperation ActionType = "yard_operation"

	// ActionMobileInteraction performs one webview interaction in the mini-app.
	ActionMobileInteraction ActionType = "mobile_interaction"

	// ActionDBQuery executes one SQL statement against the database system.
	ActionDBQuery ActionType = "db_query"
)

// System returns the system kind an action variant belongs to.
func (t ActionType) System() System {
	switch t {
	case ActionAPIRequest:
		return SystemAPI
	case ActionUIInteraction:
		return SystemUI
	case ActionYardOperation:
		return SystemYard
	case ActionMobileInteraction:
		return SystemMobile
	case ActionDBQuery:
		return SystemDatabase
	default:
		return ""
	}
}

// VerificationType discriminates the Verification union.
type VerificationType string

const (
	// VerifyResponse asserts against previously captured data. It is
	// evaluated purely from the flow-wide captured map and never touches a
	// live system.
	VerifyResponse VerificationType = "response"

	// VerifyUIState asserts against live dashboard state.
	VerifyUIState VerificationType = "ui_state"

	// VerifyYardState asserts against live 3D yard state.
	VerifyYardState VerificationType = "yard_state"

	// VerifyMobileState asserts against live mini-app state.
	VerifyMobileState VerificationType = "mobile_state"

	// VerifyDBState asserts against live database state via a query.
	VerifyDBState VerificationType = "db_state"
)

// Operator is the closed set of comparison operators a verification may use.
type Operator string

const (
	OpExists       Operator = "exists"
	OpNotExists    Operator = "not_exists"
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpContains     Operator = "contains"
	OpCountEquals  Operator = "count_equals"
	OpCountGreater Operator = "count_greater"
	OpCountLess    Operator = "count_less"
)

// Operators lists every valid comparison operator.
var Operators = []Operator{
	OpExists, OpNotExists, OpEquals, OpNotEquals,
	OpContains, OpCountEquals, OpCountGreater, OpCountLess,
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// NeedsExpected reports whether the operator compares against an expected
// value. Existence checks carry no expected operand.
func (op Operator) NeedsExpected() bool {
	return op != OpExists && op != OpNotExists
}

// Action is one imperative operation performed against a system during a
// stage. It is a tagged variant: Type selects which of the per-variant field
// groups below is meaningful. Capture optionally names the key under which
// the action's result data is stored in the flow-wide captured map.
type Action struct {
	Type    ActionType `toml:"type" json:"type"`
	Name    string     `toml:"name" json:"name"`
	Capture string     `toml:"capture,omitempty" json:"capture,omitempty"`

	// api_request fields.
	Method  string            `toml:"method,omitempty" json:"method,omitempty"`
	Path    string            `toml:"path,omitempty" json:"path,omitempty"`
	Body    map[string]any    `toml:"body,omitempty" json:"body,omitempty"`
	Headers map[string]string `toml:"headers,omitempty" json:"headers,omitempty"`

	// ui_interaction / mobile_interaction fields.
	Gesture string `toml:"gesture,omitempty" json:"gesture,omitempty"`
	Target  string `toml:"target,omitempty" json:"target,omitempty"`
	Value   string `toml:"value,omitempty" json:"value,omitempty"`

	// yard_operation fields.
	Operation   string `toml:"operation,omitempty" json:"operation,omitempty"`
	ContainerID string `toml:"container_id,omitempty" json:"container_id,omitempty"`
	Bay         int    `toml:"bay,omitempty" json:"bay,omitempty"`
	Row         int    `toml:"row,omitempty" json:"row,omitempty"`
	Tier        int    `toml:"tier,omitempty" json:"tier,omitempty"`

	// db_query fields.
	Query string `toml:"query,omitempty" json:"query,omitempty"`
	Args  []any  `toml:"args,omitempty" json:"args,omitempty"`
}

// Verification is one assertion evaluated after a stage's actions complete.
// Type selects the source of the observed value; Operator and Expected
// describe the comparison.
type Verification struct {
	Type        VerificationType `toml:"type" json:"type"`
	Description string           `toml:"description" json:"description"`

	// Field is a dotted path into the flow-wide captured map (response).
	Field string `toml:"field,omitempty" json:"field,omitempty"`

	// Target is an element selector or object identifier (ui_state,
	// yard_state, mobile_state).
	Target string `toml:"target,omitempty" json:"target,omitempty"`

	// Query is a SQL statement whose result is compared (db_state).
	Query string `toml:"query,omitempty" json:"query,omitempty"`
	Args  []any  `toml:"args,omitempty" json:"args,omitempty"`

	Operator Operator `toml:"operator" json:"operator"`
	Expected any      `toml:"expected,omitempty" json:"expected,omitempty"`
}

// Stage is one named unit of work tied to a single target system, with
// explicit predecessors named in DependsOn.
type Stage struct {
	ID            string         `toml:"id" json:"id"`
	Name          string         `toml:"name" json:"name"`
	Description   string         `toml:"description" json:"description"`
	System        System         `toml:"system" json:"system"`
	DependsOn     []string       `toml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Actions       []Action       `toml:"actions" json:"actions"`
	Verifications []Verification `toml:"verifications,omitempty" json:"verifications,omitempty"`
}

// Definition is a complete flow: a static graph of stages. It is immutable
// once constructed and owned by the caller; the engine never mutates it.
type Definition struct {
	Name        string  `toml:"name" json:"name"`
	Description string  `toml:"description" json:"description"`
	Stages      []Stage `toml:"stages" json:"stages"`
}

// StageByID returns the first stage with the given id, or nil when absent.
// First occurrence wins, matching resolver semantics for duplicate ids.
func (d *Definition) StageByID(id string) *Stage {
	for i := range d.Stages {
		if d.Stages[i].ID == id {
			return &d.Stages[i]
		}
	}
	return nil
}

// Fingerprint returns a stable content hash of the definition, used to
// correlate execution records with the exact definition that produced them.
func (d *Definition) Fingerprint() string {
	raw, err := json.Marshal(d)
	if err != nil {
		// Definitions are built from plain data types; marshaling them
		// cannot fail in practice.
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}
