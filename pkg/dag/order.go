package dag

import (
	"container/heap"
	"maps"
	"slices"
)

// PriorityGroup is a named list of package names or node IDs. Groups only
// break ties between nodes that are ready at the same time; they never
// override dependency order.
type PriorityGroup struct {
	Name    string   `toml:"name" json:"name"`
	Members []string `toml:"members" json:"members"`
}

// Priorities maps a node to the index of the first group containing it.
// Nodes in no group rank after all groups.
type Priorities struct {
	index map[string]int
	last  int
}

// NewPriorities indexes groups. Members match either a node's ID or its
// un-namespaced name.
func NewPriorities(groups []PriorityGroup) Priorities {
	p := Priorities{index: make(map[string]int), last: len(groups)}
	for i, grp := range groups {
		for _, m := range grp.Members {
			if _, seen := p.index[m]; !seen {
				p.index[m] = i
			}
		}
	}
	return p
}

// Rank returns the priority rank of the node with the given ID and name.
func (p Priorities) Rank(id, name string) int {
	if i, ok := p.index[id]; ok {
		return i
	}
	if i, ok := p.index[name]; ok {
		return i
	}
	return p.last
}

// Less orders two nodes by rank, then by ID.
func (p Priorities) Less(a, b *Node) bool {
	ra, rb := p.Rank(a.ID, a.Name), p.Rank(b.ID, b.Name)
	if ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

// Order returns the node IDs of g in build order: every node appears after
// all of its dependencies. It uses Kahn's algorithm; among nodes that are
// ready at the same time, the one in the earliest priority group wins, then
// the smallest ID. The result is deterministic.
//
// If g contains a cycle, Order returns a *errors.CyclicDependencyError naming
// one cycle among the nodes that could not be ordered.
func Order(g *DAG, groups []PriorityGroup) ([]string, error) {
	prio := NewPriorities(groups)

	remaining := make(map[string]int, g.NodeCount())
	ready := &readyQueue{prio: prio}
	for _, n := range g.Nodes() {
		remaining[n.ID] = g.OutDegree(n.ID)
		if remaining[n.ID] == 0 {
			ready.nodes = append(ready.nodes, n)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, g.NodeCount())
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		order = append(order, n.ID)
		for _, parent := range g.Parents(n.ID) {
			remaining[parent]--
			if remaining[parent] == 0 {
				p, _ := g.Node(parent)
				heap.Push(ready, p)
			}
		}
	}

	if len(order) < g.NodeCount() {
		var stuck []string
		for id, left := range remaining {
			if left > 0 {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		inStuck := func(id string) bool { _, ok := slices.BinarySearch(stuck, id); return ok }
		cycle := findCycle(stuck, func(id string) []string {
			return slices.DeleteFunc(g.Children(id), func(c string) bool { return !inStuck(c) })
		})
		return nil, cycleError(cycle)
	}
	return order, nil
}

type readyQueue struct {
	nodes []*Node
	prio  Priorities
}

func (q *readyQueue) Len() int           { return len(q.nodes) }
func (q *readyQueue) Less(i, j int) bool { return q.prio.Less(q.nodes[i], q.nodes[j]) }
func (q *readyQueue) Swap(i, j int)      { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }
func (q *readyQueue) Push(x any)         { q.nodes = append(q.nodes, x.(*Node)) }
func (q *readyQueue) Pop() any {
	n := q.nodes[len(q.nodes)-1]
	q.nodes = q.nodes[:len(q.nodes)-1]
	return n
}

// Levels groups node IDs by dependency depth: level 0 holds nodes without
// dependencies, level k nodes whose deepest dependency is on level k-1.
// Nodes on the same level can be built in parallel. IDs within a level are
// sorted. Levels fails on cyclic graphs like Order.
func Levels(g *DAG) ([][]string, error) {
	order, err := Order(g, nil)
	if err != nil {
		return nil, err
	}
	depth := make(map[string]int, len(order))
	maxDepth := -1
	for _, id := range order {
		d := 0
		for _, dep := range g.Children(id) {
			d = max(d, depth[dep]+1)
		}
		depth[id] = d
		maxDepth = max(maxDepth, d)
	}
	levels := make([][]string, maxDepth+1)
	for _, id := range slices.Sorted(maps.Keys(depth)) {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels, nil
}
