package ports

import (
	"context"

	"github.com/aretw0/stepbnb/pkg/domain"
)

// Engine is a blocking branch-and-bound solver that owns its problem data and search tree.
// The stepping layer never reimplements the search; it only registers extensions,
// runs Solve and queries the tree while Solve is parked inside an extension.
type Engine interface {
	// IncludeBranchrule registers a branching rule extension. A nil rule removes it.
	IncludeBranchrule(params domain.BranchruleConstructor, rule Branchrule) error

	// IncludeHeuristic registers a primal heuristic extension. A nil heur removes it.
	IncludeHeuristic(params domain.HeuristicConstructor, heur Heuristic) error

	// IncludeNodeSelector registers a node selection extension. A nil sel removes it.
	IncludeNodeSelector(params domain.NodeselConstructor, sel NodeSelector) error

	// Solve runs the search to completion, invoking registered extensions on the calling goroutine.
	Solve(ctx context.Context) error

	// Stage returns the current solve-stage indicator.
	Stage() domain.Stage

	// Status returns why the last Solve stopped.
	Status() domain.Status

	// OpenNodes returns the current open nodes grouped as leaves, children and siblings.
	OpenNodes() (domain.OpenNodes, error)

	// NodesLeft returns the number of open nodes.
	NodesLeft() int

	// Interrupt asks a running Solve to stop at the next opportunity.
	Interrupt() error

	// Copy deep-copies the problem (not the in-flight search) into a new engine.
	// Implementations are not required to be safe for concurrent Copy calls.
	Copy() (Engine, error)

	// Free releases the engine resources. The engine is unusable afterwards.
	Free() error
}

// Brancher is implemented by engines that accept external branching decisions.
type Brancher interface {
	// BranchCandidates returns the variable indices the focus node may branch on.
	BranchCandidates() ([]int, error)

	// Branch creates the children of the focus node for the given variable.
	Branch(variable int) error
}

// Inspector is implemented by engines that expose focus node and LP data.
type Inspector interface {
	// FocusNode returns the node currently or most recently processed.
	FocusNode() (domain.FocusNodeInfo, bool)

	// LPColumns returns the columns of the current LP relaxation.
	LPColumns() []domain.LPColumn
}

// TreeViewer is implemented by engines that keep the search tree around.
type TreeViewer interface {
	// Tree returns every node created so far, in creation order.
	Tree() []domain.TreeNode
}

// PrimalReceiver is implemented by engines that accept solutions found outside the search.
type PrimalReceiver interface {
	// LPSolution returns the primal values of the focus node's LP relaxation.
	LPSolution() ([]float64, bool)

	// AddSolution offers a solution given as the indices of the variables set to one.
	// It reports whether the solution became the new incumbent.
	AddSolution(vars []int) (bool, error)
}
