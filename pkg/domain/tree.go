package domain

// NodeOutcome is what processing did to a node.
type NodeOutcome uint8

const (
	OutcomeOpen NodeOutcome = iota
	// OutcomeProcessed marks a node whose processing ended without a verdict,
	// e.g. because the search was interrupted.
	OutcomeProcessed
	OutcomeInfeasible
	OutcomePruned
	OutcomeIntegral
	OutcomeBranched
)

func (o NodeOutcome) String() string {
	switch o {
	case OutcomeOpen:
		return "open"
	case OutcomeProcessed:
		return "processed"
	case OutcomeInfeasible:
		return "infeasible"
	case OutcomePruned:
		return "pruned"
	case OutcomeIntegral:
		return "integral"
	case OutcomeBranched:
		return "branched"
	default:
		return "unknown"
	}
}

// TreeNode is one node of the search tree as seen after the fact.
// The root has Parent 0 and Variable -1.
type TreeNode struct {
	Number   NodeID      `json:"number"`
	Parent   NodeID      `json:"parent"`
	Depth    int         `json:"depth"`
	Bound    float64     `json:"bound"`
	Outcome  NodeOutcome `json:"outcome"`
	Variable int         `json:"variable"`
	// Value is the bound the branching fixed Variable to.
	Value int `json:"value"`
}
