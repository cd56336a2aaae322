package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stage builds a minimal Stage for resolver tests.
func stage(id string, deps ...string) Stage {
	return Stage{ID: id, Name: id, System: SystemAPI, DependsOn: deps}
}

// ids extracts the id sequence from an ordered stage slice.
func ids(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.ID
	}
	return out
}

func TestResolveOrdersDependenciesFirst(t *testing.T) {
	t.Parallel()

	// Declared out of order: C depends on B depends on A.
	order, warnings := Resolve([]Stage{
		stage("C", "B"),
		stage("A"),
		stage("B", "A"),
	})

	assert.Empty(t, warnings)
	assert.Equal(t, []string{"A", "B", "C"}, ids(order))
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	input := []Stage{
		stage("create", ""),
		stage("verify-ui", "create"),
		stage("verify-db", "create"),
		stage("mobile", "verify-ui", "verify-db"),
	}
	input[0].DependsOn = nil

	first, _ := Resolve(input)
	second, _ := Resolve(input)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, []string{"create", "verify-ui", "verify-db", "mobile"}, ids(first))
}

func TestResolveDiamond(t *testing.T) {
	t.Parallel()

	order, warnings := Resolve([]Stage{
		stage("D", "B", "C"),
		stage("B", "A"),
		stage("C", "A"),
		stage("A"),
	})

	assert.Empty(t, warnings)
	got := ids(order)
	require.Len(t, got, 4)

	pos := map[string]int{}
	for i, id := range got {
		pos[id] = i
	}
	assert.Less(t, pos["A"], pos["B"])
	assert.Less(t, pos["A"], pos["C"])
	assert.Less(t, pos["B"], pos["D"])
	assert.Less(t, pos["C"], pos["D"])
}

func TestResolveUnknownDependencyIgnoredWithWarning(t *testing.T) {
	t.Parallel()

	order, warnings := Resolve([]Stage{
		stage("A", "ghost"),
		stage("B", "A"),
	})

	assert.Equal(t, []string{"A", "B"}, ids(order))
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnUnknownDependency, warnings[0].Code)
	assert.Equal(t, "A", warnings[0].Stage)
	assert.Equal(t, "ghost", warnings[0].Dependency)
}

func TestResolveCycleEmitsMembersWithWarning(t *testing.T) {
	t.Parallel()

	// A and B depend on each other; both must still be emitted exactly once.
	order, warnings := Resolve([]Stage{
		stage("A", "B"),
		stage("B", "A"),
	})

	assert.ElementsMatch(t, []string{"A", "B"}, ids(order))
	require.NotEmpty(t, warnings)
	assert.Equal(t, WarnDependencyCycle, warnings[0].Code)
}

func TestResolveSelfDependency(t *testing.T) {
	t.Parallel()

	order, warnings := Resolve([]Stage{stage("A", "A")})

	assert.Equal(t, []string{"A"}, ids(order))
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnDependencyCycle, warnings[0].Code)
	assert.Equal(t, "A", warnings[0].Stage)
}

func TestResolveDuplicateIDsFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	first := stage("A")
	first.Name = "first"
	second := stage("A")
	second.Name = "second"

	order, _ := Resolve([]Stage{first, second, stage("B", "A")})

	require.Len(t, order, 2)
	assert.Equal(t, "first", order[0].Name)
	assert.Equal(t, []string{"A", "B"}, ids(order))
}

func TestResolveEmptyInput(t *testing.T) {
	t.Parallel()

	order, warnings := Resolve(nil)
	assert.Empty(t, order)
	assert.Empty(t, warnings)
}

func TestResolveNoDuplicateEntries(t *testing.T) {
	t.Parallel()

	// Shared dependency must appear exactly once.
	order, _ := Resolve([]Stage{
		stage("B", "A"),
		stage("C", "A"),
		stage("A"),
	})

	counts := map[string]int{}
	for _, id := range ids(order) {
		counts[id]++
	}
	for id, n := range counts {
		assert.Equal(t, 1, n, "stage %s emitted more than once", id)
	}
}
