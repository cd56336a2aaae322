package flow

import "fmt"

// Resolve warning codes. The resolver tolerates malformed dependency graphs
// (unknown ids, cycles) for compatibility with hand-written definitions, but
// it reports what it tolerated so callers can decide whether to proceed.
const (
	// WarnUnknownDependency is reported when a stage's depends_on entry
	// references an id that does not exist in the definition. The entry is
	// ignored for ordering purposes.
	WarnUnknownDependency = "UNKNOWN_DEPENDENCY"

	// WarnDependencyCycle is reported when a stage participates in a
	// dependency cycle. Cycle members are emitted in visitation order, so
	// their relative ordering does not honor the cyclic edges.
	WarnDependencyCycle = "DEPENDENCY_CYCLE"
)

// ResolveWarning describes one dependency-graph anomaly the resolver
// tolerated while computing the execution order.
type ResolveWarning struct {
	// Code is one of the Warn* constants.
	Code string

	// Stage is the id of the stage whose depends_on entry triggered the
	// warning.
	Stage string

	// Dependency is the offending depends_on entry.
	Dependency string

	// Message is a human-readable description.
	Message string
}

// String renders the warning in "[CODE] stage "x": message" form.
func (w ResolveWarning) String() string {
	return fmt.Sprintf("[%s] stage %q: %s", w.Code, w.Stage, w.Message)
}

// Resolve computes a total execution order for stages such that every stage
// appears after all stages named in its DependsOn list that are present in
// the input. The order is deterministic for a fixed input order.
//
// The algorithm is a depth-first visit over the stage list in declaration
// order. Each stage is marked visited before its dependencies are recursed
// into, which short-circuits cycles instead of recursing forever; cycle
// members therefore appear in visitation order rather than dependency order,
// and a WarnDependencyCycle is reported for each back edge. Dependencies
// referencing unknown ids are skipped with a WarnUnknownDependency. Duplicate
// stage ids are never reached twice: the first occurrence wins.
//
// Resolve never fails; malformed graphs degrade to a best-effort order plus
// warnings.
func Resolve(stages []Stage) ([]Stage, []ResolveWarning) {
	index := make(map[string]int, len(stages))
	for i, s := range stages {
		if _, exists := index[s.ID]; !exists {
			index[s.ID] = i
		}
	}

	visited := make(map[string]bool, len(stages))
	emitted := make(map[string]bool, len(stages))
	order := make([]Stage, 0, len(stages))
	var warnings []ResolveWarning

	var visit func(s Stage)
	visit = func(s Stage) {
		visited[s.ID] = true
		for _, dep := range s.DependsOn {
			pos, known := index[dep]
			if !known {
				warnings = append(warnings, ResolveWarning{
					Code:       WarnUnknownDependency,
					Stage:      s.ID,
					Dependency: dep,
					Message:    fmt.Sprintf("depends_on references unknown stage %q; ignored", dep),
				})
				continue
			}
			if visited[dep] {
				// A visited-but-not-emitted dependency is on the current
				// DFS path: a back edge, so s is part of a cycle.
				if !emitted[dep] {
					warnings = append(warnings, ResolveWarning{
						Code:       WarnDependencyCycle,
						Stage:      s.ID,
						Dependency: dep,
						Message:    fmt.Sprintf("dependency on %q closes a cycle; ordering between cycle members is visitation order", dep),
					})
				}
				continue
			}
			visit(stages[pos])
		}
		order = append(order, s)
		emitted[s.ID] = true
	}

	for _, s := range stages {
		if !visited[s.ID] {
			visit(s)
		}
	}
	return order, warnings
}
