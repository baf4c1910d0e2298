package render

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stackbuild/pkg/dag"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes node metadata (resolved versions, constraints) in
	// labels. When false, only the name and version are shown.
	Detailed bool

	// Statuses maps node IDs to job status names ("finished", "failed",
	// "skipped", "running", "pending") used to fill nodes.
	Statuses map[string]string

	// Title is drawn above the graph.
	Title string
}

var kindShapes = map[dag.Kind]string{
	dag.KindComponent: "box",
	dag.KindLibrary:   "ellipse",
	dag.KindMeta:      "folder",
}

var statusColors = map[string]string{
	"finished": "palegreen",
	"failed":   "salmon",
	"skipped":  "lightgrey",
	"running":  "lightyellow",
	"pending":  "white",
}

// ToDOT converts a graph to Graphviz DOT source. g is not modified.
func ToDOT(g *dag.DAG, opts Options) string {
	acyclic := g.Clone()
	back := dag.BreakCycles(acyclic)

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", opts.Title)
	}
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := fmtAttrs(*n, fmtLabel(*n, opts.Detailed), opts.Statuses[n.ID])
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range acyclic.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}
	for _, e := range back {
		fmt.Fprintf(&buf, "  %q -> %q [color=red, penwidth=2, constraint=false];\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n dag.Node, detailed bool) string {
	label := n.Name
	if v, ok := n.Meta["version"]; ok {
		label = fmt.Sprintf("%s %v", label, v)
	}
	if !detailed {
		return label
	}

	parts := []string{"kind: " + n.Kind.String()}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		if k == "version" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n dag.Node, label, status string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if shape, ok := kindShapes[n.Kind]; ok {
		attrs = append(attrs, "shape="+shape)
	}
	if color, ok := statusColors[status]; ok {
		attrs = append(attrs, "fillcolor="+color)
	}
	if status == "skipped" {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [ToPDF] or [ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with a plain
// viewBox so the image scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
