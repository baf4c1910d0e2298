package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/stackbuild/pkg/dag"
)

// ReadJSON decodes a JSON graph from r into a DAG.
//
// Each node must have an "id". A missing "kind" is taken from the id's
// namespace; ids without a namespace are components. Each edge must
// reference listed node IDs.
//
// ReadJSON returns an error if the JSON is malformed, a node ID repeats, or
// an edge references an unknown node. Cycles are accepted here; ordering
// rejects them later. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*dag.DAG, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	g := dag.New(nil)
	for _, n := range data.Nodes {
		nd := dag.Node{ID: n.ID, Name: n.Name, Meta: n.Meta}
		switch kind, _, ok := dag.SplitID(n.ID); {
		case n.Kind != nil:
			nd.Kind = *n.Kind
		case ok:
			nd.Kind = kind
		default:
			nd.Kind = dag.KindComponent
		}
		if err := g.AddNode(nd); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(dag.Edge{From: e.From, To: e.To}); err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
	}

	return g, nil
}

// UnmarshalJSON decodes a graph produced by [MarshalJSON].
func UnmarshalJSON(data []byte) (*dag.DAG, error) {
	return ReadJSON(bytes.NewReader(data))
}

// ImportJSON reads a JSON file at path and returns the decoded DAG.
func ImportJSON(path string) (*dag.DAG, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
