// Package jsonutil provides helpers for working with JSON-like values:
// arbitrarily nested map[string]any / []any structures as produced by
// encoding/json and toml decoding. The flow engine stores captured data in
// this shape and adapters read it back via dotted-path lookups.
package jsonutil

import (
	"reflect"
	"strconv"
	"strings"
)

// Lookup traverses a JSON-like value by a dotted path such as
// "container.id" or "slots.0.bay". Each segment descends one level: a map
// segment is a key lookup, a slice segment must parse as a non-negative
// integer index. Lookup never panics; any missing key, out-of-range index,
// or non-traversable value yields (nil, false). Presence follows map-key
// existence: a key that is set to nil resolves to (nil, true), only a
// missing segment reports absent.
func Lookup(value any, path string) (any, bool) {
	if path == "" {
		return value, value != nil
	}
	current := value
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Merge copies every key of src into dst, overwriting existing keys. The
// merge is shallow: nested values are shared, not cloned, so callers that
// need isolation should Clone first. A nil src is a no-op.
func Merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// Clone returns a deep copy of a JSON-like value. Maps and slices are
// copied recursively; scalar values (string, bool, numbers, nil) are
// returned as-is since they are immutable.
func Clone(value any) any {
	switch node := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, v := range node {
			out[k] = Clone(v)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, v := range node {
			out[i] = Clone(v)
		}
		return out
	default:
		return value
	}
}

// CloneMap is a convenience wrapper around Clone for the common captured-data
// shape. A nil input yields an empty, non-nil map so callers can write into
// the result without a nil check.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Clone(m).(map[string]any)
}

// Count reports the number of elements of a JSON-like collection value:
// the length of a slice, array, or map, 1 for any other non-nil value, 0
// for nil. Adapters hand over row sets in concrete shapes such as
// []map[string]any, so the length check works on any slice or map kind,
// not just the decoded-JSON types. It backs the count_* verification
// operators.
func Count(value any) int {
	switch node := value.(type) {
	case nil:
		return 0
	case []any:
		return len(node)
	case map[string]any:
		return len(node)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 1
}
