package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepbnb/pkg/domain"
)

// Overlay contains the decisions of an episode to highlight on the tree.
type Overlay struct {
	Visited []domain.NodeID
	Current domain.NodeID
}

// GenerateMermaid produces a Mermaid flowchart of a search tree.
// Node shapes follow the processing outcome:
// - Open: ([Stadium])
// - Branched: [Rectangle]
// - Integral: [[Subroutine]]
// - Infeasible or pruned: [/Parallelogram/]
// Edges are labelled with the branching fixing, e.g. "x3=1".
func GenerateMermaid(tree []domain.TreeNode, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	known := make(map[domain.NodeID]bool, len(tree))
	for _, node := range tree {
		known[node.Number] = true
		id := mermaidID(node.Number)

		opener, closer := "[", "]"
		switch node.Outcome {
		case domain.OutcomeOpen:
			opener, closer = "([", "])"
		case domain.OutcomeIntegral:
			opener, closer = "[[", "]]"
		case domain.OutcomeInfeasible, domain.OutcomePruned:
			opener, closer = "[/", "/]"
		}
		label := fmt.Sprintf("#%d <br/> %s", node.Number, node.Outcome)
		if node.Outcome != domain.OutcomeInfeasible {
			label = fmt.Sprintf("#%d <br/> %s %.4g", node.Number, node.Outcome, node.Bound)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)

		if node.Variable >= 0 && node.Parent > 0 {
			fmt.Fprintf(&sb, "    %s -- \"x%d=%d\" --> %s\n", mermaidID(node.Parent), node.Variable, node.Value, id)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on light backgrounds, regardless of theme
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.NodeID]bool)
		for _, n := range overlay.Visited {
			if seen[n] || !known[n] || n == overlay.Current {
				continue
			}
			seen[n] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", mermaidID(n))
		}
		if known[overlay.Current] {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func mermaidID(n domain.NodeID) string {
	return fmt.Sprintf("n%d", n)
}
