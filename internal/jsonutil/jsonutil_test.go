package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"container": map[string]any{
			"id":     "MSKU-1234567",
			"weight": 24500.0,
		},
		"slots": []any{
			map[string]any{"bay": 4.0, "row": 2.0},
			map[string]any{"bay": 4.0, "row": 3.0},
		},
		"empty": nil,
	}

	tests := []struct {
		name    string
		path    string
		want    any
		wantOK  bool
	}{
		{name: "top-level key", path: "container", want: data["container"], wantOK: true},
		{name: "nested key", path: "container.id", want: "MSKU-1234567", wantOK: true},
		{name: "numeric value", path: "container.weight", want: 24500.0, wantOK: true},
		{name: "array index", path: "slots.1.row", want: 3.0, wantOK: true},
		{name: "missing key", path: "container.vessel", want: nil, wantOK: false},
		{name: "missing top-level", path: "berth", want: nil, wantOK: false},
		{name: "index out of range", path: "slots.2", want: nil, wantOK: false},
		{name: "negative index", path: "slots.-1", want: nil, wantOK: false},
		{name: "non-numeric index", path: "slots.first", want: nil, wantOK: false},
		{name: "descend into scalar", path: "container.id.suffix", want: nil, wantOK: false},
		{name: "nil leaf key is present", path: "empty", want: nil, wantOK: true},
		{name: "descend through nil leaf", path: "empty.id", want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Lookup(data, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupEmptyPath(t *testing.T) {
	t.Parallel()

	got, ok := Lookup("value", "")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = Lookup(nil, "")
	assert.False(t, ok)
}

func TestMergeOverwrites(t *testing.T) {
	t.Parallel()

	dst := map[string]any{"a": 1, "b": 2}
	Merge(dst, map[string]any{"b": 3, "c": 4})

	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, dst)
}

func TestMergeNilSource(t *testing.T) {
	t.Parallel()

	dst := map[string]any{"a": 1}
	Merge(dst, nil)
	assert.Equal(t, map[string]any{"a": 1}, dst)
}

func TestCloneIsolation(t *testing.T) {
	t.Parallel()

	original := map[string]any{
		"container": map[string]any{"id": "MSKU-1234567"},
		"tags":      []any{"reefer", "export"},
	}

	cloned := CloneMap(original)
	require.Equal(t, original, cloned)

	// Mutating the clone must not reach the original.
	cloned["container"].(map[string]any)["id"] = "changed"
	cloned["tags"].([]any)[0] = "changed"

	assert.Equal(t, "MSKU-1234567", original["container"].(map[string]any)["id"])
	assert.Equal(t, "reefer", original["tags"].([]any)[0])
}

func TestCloneMapNil(t *testing.T) {
	t.Parallel()

	m := CloneMap(nil)
	require.NotNil(t, m)
	m["k"] = "v" // writable
	assert.Len(t, m, 1)
}

func TestCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Count(nil))
	assert.Equal(t, 3, Count([]any{1, 2, 3}))
	assert.Equal(t, 2, Count(map[string]any{"a": 1, "b": 2}))
	assert.Equal(t, 1, Count("scalar"))
	assert.Equal(t, 1, Count(42.0))

	// Row sets arrive from adapters in concrete element types.
	rows := []map[string]any{
		{"id": 1, "status": "announced"},
		{"id": 2, "status": "announced"},
		{"id": 3, "status": "discharged"},
	}
	assert.Equal(t, 3, Count(rows))
	assert.Equal(t, 0, Count([]map[string]any{}))
	assert.Equal(t, 0, Count([]map[string]any(nil)))
	assert.Equal(t, 2, Count([]string{"B01", "B02"}))
}
