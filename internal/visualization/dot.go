package visualization

import (
	"fmt"
	"strings"
)

// nodeColors maps node kinds to DOT colors.
var nodeColors = map[string]string{
	KindStart: "steelblue",
	KindOdd:   "lightgray",
	KindMemo:  "mediumseagreen",
	KindTail:  "goldenrod",
}

// RenderDOT produces a Graphviz DOT representation of the trajectory.
func RenderDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph collatz {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString(fmt.Sprintf("  label=%q;\n\n", fmt.Sprintf("%s is %s", g.Start, g.Classification)))

	for _, n := range g.Nodes {
		color := nodeColors[n.Kind]
		if color == "" {
			color = "white"
		}
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q, tooltip=%q];\n",
			n.ID, truncate(n.ID, 40), color, n.Kind))
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		// The edge into a tail is 3n+1 itself; there is no halving step to label
		if e.Halvings == 0 {
			b.WriteString(fmt.Sprintf("  %q -> %q [style=dashed];\n", e.Source, e.Target))
			continue
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [label=\"/2^%d\"];\n", e.Source, e.Target, e.Halvings))
	}

	b.WriteString("}\n")
	return b.String()
}

// truncate shortens s to maxLen runes, keeping both ends of long numbers.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	half := (maxLen - 3) / 2
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}
