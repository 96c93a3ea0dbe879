package phlex

import (
	"fmt"
	"sort"
	"strings"
)

// DotAttributes are the per-node attributes of the DOT export.
// Empty fields are omitted.
type DotAttributes struct {
	Color     string
	Fontcolor string
	Fontsize  string
	Label     string
	Shape     string
	Style     string
}

// String renders the attributes comma-separated and wrapped in
// brackets: "[color=red, shape=box]".
func (a DotAttributes) String() string {
	var result string
	maybeComma := func() string {
		if result == "" {
			return ""
		}
		return ", "
	}
	if a.Color != "" {
		result += "color=" + a.Color
	}
	if a.Fontcolor != "" {
		result += maybeComma() + "fontcolor=" + a.Fontcolor
	}
	if a.Fontsize != "" {
		result += maybeComma() + "fontsize=" + a.Fontsize
	}
	if a.Label != "" {
		result += maybeComma() + "label=\" " + a.Label + "\""
	}
	if a.Shape != "" {
		result += maybeComma() + "shape=" + a.Shape
	}
	if a.Style != "" {
		result += maybeComma() + "style=" + a.Style
	}
	return "[" + result + "]"
}

// dotStyles maps each node kind to its rendering.
var dotStyles = map[nodeKind]DotAttributes{
	kindTransform: {Color: "darkgreen", Shape: "ellipse"},
	kindObserve:   {Color: "gray", Shape: "ellipse", Style: "dashed"},
	kindOutput:    {Color: "black", Shape: "cylinder"},
	kindReduce:    {Color: "blue", Shape: "invtrapezium"},
}

// Dot emits a DOT-language representation of the wired topology, for
// debugging. Nodes are styled by kind; edges are labeled with the
// product names they carry.
func (cg *CompiledGraph) Dot() string {
	var b strings.Builder
	b.WriteString("digraph phlex {\n")

	srcAttrs := DotAttributes{Color: "red", Shape: "doublecircle", Label: cg.source.name}
	fmt.Fprintf(&b, "  %q %s;\n", cg.source.name, srcAttrs)

	for _, i := range cg.order {
		n := cg.nodes[i]
		attrs := dotStyles[n.kind]
		attrs.Label = n.name
		fmt.Fprintf(&b, "  %q %s;\n", n.name, attrs)
	}

	// Edges, grouped by (producer, consumer) with product labels.
	type edge struct{ from, to string }
	labels := make(map[edge][]string)
	for _, i := range cg.order {
		n := cg.nodes[i]
		for pi, spec := range n.ports {
			from := cg.source.name
			if p := n.portProducer[pi]; p != sourceIndex {
				from = cg.nodes[p].name
			}
			key := edge{from: from, to: n.name}
			labels[key] = append(labels[key], spec.Name)
		}
	}
	edges := make([]edge, 0, len(labels))
	for e := range labels {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})
	for _, e := range edges {
		sort.Strings(labels[e])
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.from, e.to, strings.Join(labels[e], ", "))
	}

	b.WriteString("}\n")
	return b.String()
}
