package ports

import (
	"context"

	"github.com/aretw0/stepbnb/pkg/domain"
)

// Branchrule is invoked by the engine when the focus node needs branching.
// Each method returns one of the engine's branching outcome codes.
type Branchrule interface {
	// ExecLP runs on a fractional LP solution.
	ExecLP(ctx context.Context, allowAddConstraints bool) (domain.Result, error)

	// ExecExternal runs on external branching candidates.
	ExecExternal(ctx context.Context, allowAddConstraints bool) (domain.Result, error)

	// ExecPseudo runs on a not completely fixed pseudo solution.
	ExecPseudo(ctx context.Context, allowAddConstraints bool) (domain.Result, error)
}

// Heuristic is invoked by the engine at the points selected by its timing mask.
type Heuristic interface {
	Exec(ctx context.Context, timing domain.HeurTiming, nodeInfeasible bool) (domain.Result, error)
}

// NodeSelector is invoked by the engine to pick the next open node.
type NodeSelector interface {
	// Select stores the chosen node in slot. An empty slot means no node is available
	// and the search ends.
	Select(ctx context.Context, slot *domain.SelectionSlot) error

	// Compare orders two open nodes: negative if a comes first, positive if b does,
	// zero for no preference.
	Compare(a, b domain.OpenNode) int
}
