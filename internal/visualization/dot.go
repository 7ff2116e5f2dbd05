// Package visualization renders influence graphs in various output formats
// and serves them, together with simulations, on a local HTTP workbench.
package visualization

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nvandessel/co2twin/internal/sanitize"
	"github.com/nvandessel/co2twin/internal/sector"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. The empty string means DOT.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: dot, json)", s)
	}
}

// nodeColors maps a node's role to a DOT fill color.
var nodeColors = map[string]string{
	"source": "steelblue",
	"sink":   "goldenrod",
	"both":   "mediumseagreen",
	"none":   "lightgray",
}

// edgeColor picks a color by coefficient sign: dampening edges are green,
// amplifying edges red.
func edgeColor(c float64) string {
	switch {
	case c < 0:
		return "forestgreen"
	case c > 0:
		return "tomato"
	default:
		return "gray"
	}
}

// NodeJSON is one sector in the JSON rendering.
type NodeJSON struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	OutDegree int      `json:"out_degree"`
	InDegree  int      `json:"in_degree"`
	Value     *float64 `json:"value,omitempty"`
}

// GraphJSON is the JSON rendering of an influence graph.
type GraphJSON struct {
	Nodes     []NodeJSON    `json:"nodes"`
	Edges     []sector.Edge `json:"edges"`
	NodeCount int           `json:"node_count"`
	EdgeCount int           `json:"edge_count"`
}

// RenderDOT produces a Graphviz DOT representation of the influence graph.
// When values is non-nil each node label carries its value.
func RenderDOT(g *sector.Graph, values sector.Values) string {
	var b strings.Builder
	b.WriteString("digraph co2twin {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, n := range nodes(g, values) {
		label := truncate(sanitize.Text(n.ID), 40)
		if n.Value != nil {
			label = fmt.Sprintf("%s\n%.1f", label, *n.Value)
		}
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q];\n",
			n.ID, label, nodeColors[n.Role]))
	}
	b.WriteString("\n")

	for _, e := range g.Edges() {
		b.WriteString(fmt.Sprintf("  %q -> %q [label=\"%+.3f\", color=%q, penwidth=%.1f];\n",
			e.Source, e.Target, e.Coefficient, edgeColor(e.Coefficient), penWidth(e.Coefficient)))
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a node and edge listing of the influence graph.
func RenderJSON(g *sector.Graph, values sector.Values) GraphJSON {
	ns := nodes(g, values)
	edges := g.Edges()
	if edges == nil {
		edges = []sector.Edge{}
	}
	return GraphJSON{
		Nodes:     ns,
		Edges:     edges,
		NodeCount: len(ns),
		EdgeCount: len(edges),
	}
}

// Render writes the graph to w in the requested format.
func Render(w io.Writer, format Format, g *sector.Graph, values sector.Values) error {
	switch format {
	case FormatDOT, "":
		_, err := io.WriteString(w, RenderDOT(g, values))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(RenderJSON(g, values))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// nodes lists every graph sector plus any sector only present in values,
// sorted by name.
func nodes(g *sector.Graph, values sector.Values) []NodeJSON {
	in := make(map[string]int)
	for _, e := range g.Edges() {
		in[e.Target]++
	}

	names := g.Sectors()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, k := range values.Keys() {
		if !seen[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	out := make([]NodeJSON, 0, len(names))
	for _, n := range names {
		node := NodeJSON{
			ID:        n,
			OutDegree: len(g.Out(n)),
			InDegree:  in[n],
		}
		node.Role = role(node.OutDegree, node.InDegree)
		if values != nil {
			v := values[n]
			node.Value = &v
		}
		out = append(out, node)
	}
	return out
}

func role(out, in int) string {
	switch {
	case out > 0 && in > 0:
		return "both"
	case out > 0:
		return "source"
	case in > 0:
		return "sink"
	default:
		return "none"
	}
}

// penWidth scales edge thickness with coupling strength.
func penWidth(c float64) float64 {
	if c < 0 {
		c = -c
	}
	w := 1 + c*20
	if w > 5 {
		w = 5
	}
	return w
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
