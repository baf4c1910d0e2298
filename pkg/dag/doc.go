// Package dag provides the dependency graph shared by every stage of a
// stackbuild run, and the topological orderer that turns it into a build
// order.
//
// # Overview
//
// A [DAG] maps node IDs to the set of IDs they directly require. Edges point
// from a dependent to its dependency, so sources are the packages nothing
// depends on and sinks are packages without dependencies.
//
// Nodes come from two universes that may reuse names: natively built
// components and RubyGems libraries. IDs are therefore namespaced by [Kind]
// with [NodeID]:
//
//	dag.NodeID(dag.KindComponent, "utilrb") // "component:utilrb"
//	dag.NodeID(dag.KindLibrary, "utilrb")   // "library:utilrb"
//
// A third kind, [KindMeta], aggregates other nodes and has no build of its
// own beyond marking its dependencies complete.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "component:app", Kind: dag.KindComponent})
//	g.AddNode(dag.Node{ID: "library:rake", Kind: dag.KindLibrary})
//	g.AddEdge(dag.Edge{From: "component:app", To: "library:rake"})
//
// [FromEdgeMap] builds a graph from a plain map, which is how job maps handed
// to the scheduler are validated.
//
// # Ordering
//
// [Order] runs Kahn's algorithm. Ties between ready nodes are broken by
// [PriorityGroup] rank and then by ID, so the same graph always yields the
// same order. Cycles are reported as *errors.CyclicDependencyError naming the
// cycle. [Levels] groups nodes that can be built in parallel.
//
// # Thread Safety
//
// DAG is not safe for concurrent use. The closure builder mutates a graph
// from a single goroutine; later stages work on clones.
package dag
