package flow

import (
	"fmt"
	"strings"
)

// Issue code constants classify each ValidationIssue by its structural
// category. Codes are stable strings so callers can switch on them without
// importing numeric iota values.
const (
	// IssueNoStages is reported when a definition has an empty stage list.
	IssueNoStages = "NO_STAGES"

	// IssueEmptyStageID is reported when a stage has an empty ID field.
	IssueEmptyStageID = "EMPTY_STAGE_ID"

	// IssueDuplicateStage is reported when two or more stages share an id.
	// The resolver only ever executes the first occurrence.
	IssueDuplicateStage = "DUPLICATE_STAGE_ID"

	// IssueUnknownSystem is reported when a stage names a system outside the
	// closed identifier set.
	IssueUnknownSystem = "UNKNOWN_SYSTEM"

	// IssueInvalidAction is reported when an action is missing fields its
	// variant requires, or its variant does not match the stage's system.
	IssueInvalidAction = "INVALID_ACTION"

	// IssueInvalidVerification is reported when a verification is missing
	// fields its variant requires or uses an unknown operator.
	IssueInvalidVerification = "INVALID_VERIFICATION"

	// IssueUnknownDependency is reported when depends_on references an id
	// not present in the definition. The resolver ignores the entry, so this
	// is a warning rather than an error.
	IssueUnknownDependency = "UNKNOWN_DEPENDENCY"

	// IssueDependencyCycle is reported when stages form a dependency cycle.
	// The resolver emits cycle members in visitation order, so this is a
	// warning rather than an error.
	IssueDependencyCycle = "DEPENDENCY_CYCLE"

	// IssueNoVerifications is reported when a stage performs actions but
	// asserts nothing afterwards.
	IssueNoVerifications = "NO_VERIFICATIONS"
)

// ValidationIssue describes a single structural problem found in a
// Definition. Issues with a non-empty Stage field are associated with a
// specific stage; others are definition-level concerns.
type ValidationIssue struct {
	// Code is one of the Issue* constants identifying the problem category.
	Code string

	// Stage is the id of the stage involved, or empty for definition-level
	// issues.
	Stage string

	// Message is a human-readable description of the problem.
	Message string
}

// ValidationResult holds the outcome of validating a single Definition.
// Errors are fatal: the flow should not execute. Warnings are non-fatal: the
// flow may run but could behave unexpectedly.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// IsValid reports whether the definition has no errors. Warnings alone do
// not make a definition invalid.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// String returns a multi-line human-readable summary of all issues.
func (r *ValidationResult) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Errors (%d):\n", len(r.Errors))
	for _, issue := range r.Errors {
		writeIssue(&b, issue)
	}
	fmt.Fprintf(&b, "Warnings (%d):\n", len(r.Warnings))
	for _, issue := range r.Warnings {
		writeIssue(&b, issue)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, issue ValidationIssue) {
	if issue.Stage != "" {
		fmt.Fprintf(b, "  [%s] stage %q: %s\n", issue.Code, issue.Stage, issue.Message)
	} else {
		fmt.Fprintf(b, "  [%s] %s\n", issue.Code, issue.Message)
	}
}

// Validate checks a flow definition for structural errors and design
// warnings. It always returns a non-nil ValidationResult.
//
// Validation sequence:
//  1. Basic checks: empty stage list, empty stage ids, duplicate ids,
//     unknown systems.
//  2. Per-action and per-verification shape checks (variant fields,
//     operators, system/variant agreement).
//  3. Dependency checks via Resolve: unknown depends_on targets and cycles
//     surface as warnings, mirroring the resolver's tolerance.
//  4. Design warnings: stages with actions but no verifications.
func Validate(def *Definition) *ValidationResult {
	result := &ValidationResult{}

	if def == nil || len(def.Stages) == 0 {
		result.Errors = append(result.Errors, ValidationIssue{
			Code:    IssueNoStages,
			Message: "flow definition has no stages",
		})
		return result
	}

	seen := make(map[string]bool, len(def.Stages))
	for i, stage := range def.Stages {
		if stage.ID == "" {
			result.Errors = append(result.Errors, ValidationIssue{
				Code:    IssueEmptyStageID,
				Message: fmt.Sprintf("stage at index %d has an empty id", i),
			})
			continue
		}
		if seen[stage.ID] {
			result.Errors = append(result.Errors, ValidationIssue{
				Code:    IssueDuplicateStage,
				Stage:   stage.ID,
				Message: fmt.Sprintf("stage id %q appears more than once; only the first occurrence executes", stage.ID),
			})
			continue
		}
		seen[stage.ID] = true

		if !stage.System.Valid() {
			result.Errors = append(result.Errors, ValidationIssue{
				Code:    IssueUnknownSystem,
				Stage:   stage.ID,
				Message: fmt.Sprintf("system %q is not a known system identifier", stage.System),
			})
		}

		for j, action := range stage.Actions {
			if err := validateAction(stage, action); err != nil {
				result.Errors = append(result.Errors, ValidationIssue{
					Code:    IssueInvalidAction,
					Stage:   stage.ID,
					Message: fmt.Sprintf("action %d (%s): %v", j, action.Type, err),
				})
			}
		}
		for j, v := range stage.Verifications {
			if err := validateVerification(v); err != nil {
				result.Errors = append(result.Errors, ValidationIssue{
					Code:    IssueInvalidVerification,
					Stage:   stage.ID,
					Message: fmt.Sprintf("verification %d (%s): %v", j, v.Type, err),
				})
			}
		}

		if len(stage.Actions) > 0 && len(stage.Verifications) == 0 {
			result.Warnings = append(result.Warnings, ValidationIssue{
				Code:    IssueNoVerifications,
				Stage:   stage.ID,
				Message: "stage performs actions but verifies nothing",
			})
		}
	}

	// Dependency anomalies come straight from the resolver so validation and
	// execution agree on what is tolerated.
	_, resolveWarnings := Resolve(def.Stages)
	for _, w := range resolveWarnings {
		code := IssueUnknownDependency
		if w.Code == WarnDependencyCycle {
			code = IssueDependencyCycle
		}
		result.Warnings = append(result.Warnings, ValidationIssue{
			Code:    code,
			Stage:   w.Stage,
			Message: w.Message,
		})
	}

	return result
}

func validateAction(stage Stage, action Action) error {
	switch action.Type {
	case ActionAPIRequest:
		if action.Method == "" || action.Path == "" {
			return fmt.Errorf("api_request requires method and path")
		}
	case ActionUIInteraction, ActionMobileInteraction:
		if action.Gesture == "" {
			return fmt.Errorf("%s requires a gesture", action.Type)
		}
		if action.Gesture != "navigate" && action.Target == "" {
			return fmt.Errorf("%s gesture %q requires a target", action.Type, action.Gesture)
		}
	case ActionYardOperation:
		if action.Operation == "" || action.ContainerID == "" {
			return fmt.Errorf("yard_operation requires operation and container_id")
		}
	case ActionDBQuery:
		if action.Query == "" {
			return fmt.Errorf("db_query requires a query")
		}
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}

	if sys := action.Type.System(); sys != stage.System {
		return fmt.Errorf("action type %s belongs to system %q, stage targets %q", action.Type, sys, stage.System)
	}
	return nil
}

func validateVerification(v Verification) error {
	if !v.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", v.Operator)
	}
	if v.Operator.NeedsExpected() && v.Expected == nil {
		return fmt.Errorf("operator %s requires an expected value", v.Operator)
	}

	switch v.Type {
	case VerifyResponse:
		if v.Field == "" {
			return fmt.Errorf("response verification requires a field path")
		}
	case VerifyUIState, VerifyYardState, VerifyMobileState:
		if v.Target == "" {
			return fmt.Errorf("%s verification requires a target", v.Type)
		}
	case VerifyDBState:
		if v.Query == "" {
			return fmt.Errorf("db_state verification requires a query")
		}
	default:
		return fmt.Errorf("unknown verification type %q", v.Type)
	}
	return nil
}
