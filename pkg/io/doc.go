// Package io provides JSON import and export for dependency graphs.
//
// # Overview
//
// Resolved closures are serialized to a small JSON document so they can be
// cached between runs, inspected with external tools, and fed back into the
// pruning and ordering stages without resolving again.
//
// # JSON Format
//
// The format has two required top-level arrays:
//
//	{
//	  "nodes": [
//	    {"id": "meta:rock-core", "kind": "meta"},
//	    {"id": "component:base-types", "kind": "component"},
//	    {"id": "library:utilrb", "kind": "library", "meta": {"version": "3.1.0"}}
//	  ],
//	  "edges": [
//	    {"from": "meta:rock-core", "to": "component:base-types"},
//	    {"from": "component:base-types", "to": "library:utilrb"}
//	  ]
//	}
//
// # Node Fields
//
// Required:
//   - id: Unique namespaced identifier ("<kind>:<name>")
//
// Optional:
//   - kind: "component", "library" or "meta" (derived from the id if omitted)
//   - name: Package name (derived from the id if omitted)
//   - meta: Freeform object; resolved libraries carry "version" and
//     "constraints"
//
// Edges point from a package to a package it requires. Both ends must be
// listed in "nodes".
//
// # Import
//
// Use [ImportJSON] to read a graph from a file path, or [ReadJSON] to read
// from any io.Reader:
//
//	g, err := io.ImportJSON("closure.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Export
//
// Use [WriteJSON] or [MarshalJSON] to serialize a graph; output is sorted by
// node ID so equal graphs produce identical bytes.
package io
