// Package render produces human-readable views of build graphs.
//
// # Overview
//
// The CLI prints build orders as numbered lists or parallel levels and
// draws dependency graphs with Graphviz:
//
//	dot := render.ToDOT(g, render.Options{Statuses: snapshot.Jobs})
//	svg, err := render.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//
// # DOT Format
//
// [ToDOT] draws edges from a package to what it requires, top to bottom.
// Components are boxes, libraries ellipses and meta packages folders. When
// job statuses are given, nodes are filled by status. Graphs with cycles
// are drawn with the edges closing each cycle in red, so they can be
// inspected before the cycle is fixed.
//
// # Dependencies
//
// SVG rendering runs in-process through [github.com/goccy/go-graphviz].
// PDF and PNG conversion requires librsvg (rsvg-convert).
package render
