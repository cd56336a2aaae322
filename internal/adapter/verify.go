package adapter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gantrylabs/gantry/internal/flow"
	"github.com/gantrylabs/gantry/internal/jsonutil"
)

// EvaluateCaptured evaluates a response verification against the flow-wide
// captured data. It is shared by every adapter: response verifications read
// exclusively from the captured map, so their semantics must not vary by
// system.
func EvaluateCaptured(v flow.Verification, rctx *RunContext) VerificationResult {
	observed, present := jsonutil.Lookup(rctx.Captured, v.Field)
	result := EvaluateOperator(v, observed, present)
	if !result.Passed && result.FailureReason != "" {
		result.FailureReason = fmt.Sprintf("field %q: %s", v.Field, result.FailureReason)
	}
	return result
}

// EvaluateOperator applies a verification's operator to an observed value.
// present reports whether the observed value exists at all (a missing
// captured path or an absent UI element). The returned result carries the
// verification's description; the engine stamps Duration.
func EvaluateOperator(v flow.Verification, observed any, present bool) VerificationResult {
	result := VerificationResult{Description: v.Description, Passed: true}

	fail := func(format string, args ...any) VerificationResult {
		result.Passed = false
		result.FailureReason = fmt.Sprintf(format, args...)
		return result
	}

	switch v.Operator {
	case flow.OpExists:
		if !present {
			return fail("expected value to exist")
		}
	case flow.OpNotExists:
		if present {
			return fail("expected value to be absent, observed %v", observed)
		}
	case flow.OpEquals:
		if !present {
			return fail("expected %v, value is absent", v.Expected)
		}
		if !looseEqual(observed, v.Expected) {
			return fail("expected %v, observed %v", v.Expected, observed)
		}
	case flow.OpNotEquals:
		if present && looseEqual(observed, v.Expected) {
			return fail("expected anything but %v", v.Expected)
		}
	case flow.OpContains:
		if !present {
			return fail("expected container holding %v, value is absent", v.Expected)
		}
		if !contains(observed, v.Expected) {
			return fail("expected %v to contain %v", observed, v.Expected)
		}
	case flow.OpCountEquals, flow.OpCountGreater, flow.OpCountLess:
		want, ok := asFloat(v.Expected)
		if !ok {
			return fail("count operator expects a numeric operand, got %v", v.Expected)
		}
		got := float64(jsonutil.Count(observed))
		switch {
		case v.Operator == flow.OpCountEquals && got != want:
			return fail("expected count %v, observed %v", want, got)
		case v.Operator == flow.OpCountGreater && got <= want:
			return fail("expected count > %v, observed %v", want, got)
		case v.Operator == flow.OpCountLess && got >= want:
			return fail("expected count < %v, observed %v", want, got)
		}
	default:
		return fail("unknown operator %q", v.Operator)
	}

	return result
}

// looseEqual compares two JSON-like values, treating all numeric types as
// equivalent. TOML decodes integers as int64 while JSON produces float64;
// a definition's expected 42 must match a captured 42.0.
func looseEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, okb := asFloat(b)
		return okb && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// contains implements the contains operator per observed shape: substring
// for strings, element membership for slices, key presence for maps.
func contains(observed, expected any) bool {
	switch node := observed.(type) {
	case string:
		s, ok := expected.(string)
		return ok && strings.Contains(node, s)
	case []any:
		for _, item := range node {
			if looseEqual(item, expected) {
				return true
			}
		}
		return false
	case map[string]any:
		key, ok := expected.(string)
		if !ok {
			return false
		}
		_, found := node[key]
		return found
	default:
		return false
	}
}

// asFloat normalizes any numeric type to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
