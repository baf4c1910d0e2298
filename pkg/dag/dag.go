package dag

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] and [DAG.RenameNode] when
	// the node ID is empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] and [DAG.RenameNode] when
	// a node with the same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist, or by [DAG.RenameNode] when the old ID is not found.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrInvalidKind is returned by [ParseKind] for unknown kind names.
	ErrInvalidKind = errors.New("invalid node kind")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph,
// such as the resolved version of a library. Metadata maps are never nil
// after AddNode.
type Metadata map[string]any

// Kind is the closed set of node kinds. Components are built natively,
// libraries come from the RubyGems ecosystem and meta nodes only aggregate
// other nodes.
type Kind int

const (
	KindComponent Kind = iota
	KindLibrary
	KindMeta
)

// Kinds lists every kind in report order.
var Kinds = []Kind{KindComponent, KindLibrary, KindMeta}

// String returns the kind's name, which is also its identifier namespace.
func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindLibrary:
		return "library"
	case KindMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name as returned by [Kind.String].
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, ErrInvalidKind
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// NodeID returns the namespaced identifier of a package, e.g.
// "library:utilrb". Namespacing keeps components and libraries that share a
// name apart.
func NodeID(kind Kind, name string) string {
	return kind.String() + ":" + name
}

// SplitID splits a namespaced identifier into kind and name. ok is false for
// identifiers that carry no known namespace.
func SplitID(id string) (kind Kind, name string, ok bool) {
	prefix, name, found := strings.Cut(id, ":")
	if !found {
		return 0, id, false
	}
	kind, err := ParseKind(prefix)
	if err != nil {
		return 0, id, false
	}
	return kind, name, true
}

// Node is a package in the dependency graph.
type Node struct {
	ID   string   // Namespaced identifier, see NodeID
	Name string   // Package name without namespace
	Kind Kind     // Component, library or meta
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Edge is a dependency: From requires To.
type Edge struct {
	From string
	To   string
}

// DAG is a directed graph of package dependencies. Edges point from a
// package to the packages it requires. Despite the name, cycles can be
// represented; [DAG.Validate] and [Order] reject them.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	outgoing map[string]map[string]struct{} // nodeID -> dependencies
	incoming map[string]map[string]struct{} // nodeID -> dependents
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string]map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
		meta:     meta,
	}
}

// FromEdgeMap builds a graph from a plain id -> dependencies map. Kinds are
// derived from identifier namespaces; ids without a namespace are components.
// Every dependency must also be a key.
func FromEdgeMap(m map[string][]string) (*DAG, error) {
	g := New(nil)
	for _, id := range slices.Sorted(maps.Keys(m)) {
		kind, name, ok := SplitID(id)
		if !ok {
			kind = KindComponent
		}
		if err := g.AddNode(Node{ID: id, Name: name, Kind: kind}); err != nil {
			return nil, err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(m)) {
		for _, dep := range m[id] {
			if err := g.AddEdge(Edge{From: id, To: dep}); err != nil {
				return nil, &UnknownDependencyError{From: id, To: dep}
			}
		}
	}
	return g, nil
}

// UnknownDependencyError reports an edge to an identifier that is not a node.
type UnknownDependencyError struct {
	From, To string
}

func (e *UnknownDependencyError) Error() string {
	return "unknown dependency " + e.To + " of " + e.From
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode adds a node to the graph. Returns ErrInvalidNodeID if the node ID
// is empty, or ErrDuplicateNodeID if the ID is already in use. An empty
// Name defaults to the un-namespaced part of the ID.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	if n.Name == "" {
		_, n.Name, _ = SplitID(n.ID)
	}
	d.nodes[n.ID] = &n
	return nil
}

// AddEdge adds a dependency between two existing nodes. Adding the same
// edge twice is a no-op.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	link(d.outgoing, e.From, e.To)
	link(d.incoming, e.To, e.From)
	return nil
}

func link(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(map[string]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

// RemoveEdge removes the edge from→to if it exists.
func (d *DAG) RemoveEdge(from, to string) {
	delete(d.outgoing[from], to)
	delete(d.incoming[to], from)
}

// RemoveNode removes a node and every edge touching it. Removing an unknown
// node is a no-op.
func (d *DAG) RemoveNode(id string) {
	if _, ok := d.nodes[id]; !ok {
		return
	}
	for dep := range d.outgoing[id] {
		delete(d.incoming[dep], id)
	}
	for parent := range d.incoming[id] {
		delete(d.outgoing[parent], id)
	}
	delete(d.outgoing, id)
	delete(d.incoming, id)
	delete(d.nodes, id)
}

// RenameNode changes a node's ID, updating all edges.
// Returns ErrInvalidNodeID if newID is empty, ErrUnknownSourceNode if
// oldID doesn't exist, or ErrDuplicateNodeID if newID is already in use.
func (d *DAG) RenameNode(oldID, newID string) error {
	if newID == "" {
		return ErrInvalidNodeID
	}
	node, ok := d.nodes[oldID]
	if !ok {
		return ErrUnknownSourceNode
	}
	if _, exists := d.nodes[newID]; exists {
		return ErrDuplicateNodeID
	}

	node.ID = newID
	delete(d.nodes, oldID)
	d.nodes[newID] = node

	out, in := d.outgoing[oldID], d.incoming[oldID]
	delete(d.outgoing, oldID)
	delete(d.incoming, oldID)
	for dep := range out {
		delete(d.incoming[dep], oldID)
		link(d.incoming, dep, newID)
		link(d.outgoing, newID, dep)
	}
	for parent := range in {
		delete(d.outgoing[parent], oldID)
		link(d.outgoing, parent, newID)
		link(d.incoming, newID, parent)
	}
	return nil
}

// Nodes returns all nodes sorted by ID. The returned slice contains
// pointers to the actual node structs, so modifications affect the graph.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.nodes))
	for _, id := range d.IDs() {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// IDs returns all node IDs in sorted order.
func (d *DAG) IDs() []string {
	return slices.Sorted(maps.Keys(d.nodes))
}

// Edges returns all edges sorted by (From, To).
func (d *DAG) Edges() []Edge {
	var edges []Edge
	for _, from := range d.IDs() {
		for _, to := range d.Children(from) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int {
	n := 0
	for _, set := range d.outgoing {
		n += len(set)
	}
	return n
}

// Has reports whether a node with the given ID exists.
func (d *DAG) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Children returns the sorted IDs of the node's direct dependencies.
func (d *DAG) Children(id string) []string {
	return slices.Sorted(maps.Keys(d.outgoing[id]))
}

// Parents returns the sorted IDs of the nodes that directly depend on id.
func (d *DAG) Parents(id string) []string {
	return slices.Sorted(maps.Keys(d.incoming[id]))
}

// OutDegree returns the number of direct dependencies of the node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of direct dependents of the node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Sources returns nodes nothing depends on (the seeds of a closure),
// sorted by ID.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, n := range d.Nodes() {
		if len(d.incoming[n.ID]) == 0 {
			sources = append(sources, n)
		}
	}
	return sources
}

// Sinks returns nodes without dependencies, sorted by ID.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, n := range d.Nodes() {
		if len(d.outgoing[n.ID]) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

// EdgeMap returns the graph as a plain id -> sorted dependencies map.
// Every node is a key, with an empty slice when it has no dependencies.
func (d *DAG) EdgeMap() map[string][]string {
	m := make(map[string][]string, len(d.nodes))
	for id := range d.nodes {
		m[id] = d.Children(id)
	}
	return m
}

// Clone returns a deep copy of the graph. Metadata maps are copied one
// level deep.
func (d *DAG) Clone() *DAG {
	c := New(maps.Clone(d.meta))
	for id, n := range d.nodes {
		cp := *n
		cp.Meta = maps.Clone(n.Meta)
		c.nodes[id] = &cp
	}
	for from, set := range d.outgoing {
		for to := range set {
			link(c.outgoing, from, to)
			link(c.incoming, to, from)
		}
	}
	return c
}

// Validate checks that the graph is acyclic. It returns a
// *errors.CyclicDependencyError naming one cycle if it is not.
func (d *DAG) Validate() error {
	if cycle := FindCycle(d); cycle != nil {
		return cycleError(cycle)
	}
	return nil
}

// NodeIDs extracts the ID from each node in a slice.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
