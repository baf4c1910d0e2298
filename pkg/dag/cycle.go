package dag

import (
	"slices"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// FindCycle returns one dependency cycle in g, or nil if g is acyclic. The
// returned path starts and ends with the same node ID and follows edge
// direction ("a" requires "b" requires "a"). The search is deterministic:
// nodes and children are visited in ID order.
func FindCycle(g *DAG) []string {
	return findCycle(g.IDs(), g.Children)
}

// findCycle runs a white/gray/black DFS over ids, keeping the gray path so the
// cycle can be cut out of it when a back edge is found.
func findCycle(ids []string, children func(string) []string) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(ids))
	var path []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, child := range children(id) {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(path, child)
				cycle = append(slices.Clone(path[start:]), child)
				return true
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	return nil
}

// BreakCycles removes back edges until g is acyclic and returns the removed
// edges. It is used for display only; scheduling rejects cyclic graphs.
func BreakCycles(g *DAG) []Edge {
	var removed []Edge
	for {
		cycle := FindCycle(g)
		if cycle == nil {
			return removed
		}
		e := Edge{From: cycle[len(cycle)-2], To: cycle[len(cycle)-1]}
		g.RemoveEdge(e.From, e.To)
		removed = append(removed, e)
	}
}

func cycleError(cycle []string) error {
	return &errors.CyclicDependencyError{Cycle: cycle}
}
