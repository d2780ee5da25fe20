// Package reverse implements the reverse callbacks: engine extensions whose decision
// logic lives outside the engine and is fetched by suspending the engine's goroutine.
//
// Each adapter packages its arguments into a domain.Call, hands it to the coroutine
// executor and translates the resumed value back into the engine's outcome codes.
package reverse

import (
	"context"
	"errors"
	"fmt"
	"weak"

	"github.com/aretw0/stepbnb/internal/coroutine"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
)

// Executor is the worker side of a stepping run.
type Executor = coroutine.Executor[domain.Call, domain.Result]

// Ref is the weak executor reference held by every adapter.
type Ref = weak.Pointer[Executor]

// Include registers one adapter per constructor with the engine.
// Adapters left over from an earlier run are removed first, so only the kinds
// named by constructors reach the controller.
func Include(engine ports.Engine, ref Ref, constructors ...domain.Constructor) error {
	if err := clearExtensions(engine); err != nil {
		return err
	}
	for _, c := range constructors {
		var err error
		switch params := c.(type) {
		case domain.BranchruleConstructor:
			err = engine.IncludeBranchrule(params, &Branchrule{engine: engine, ref: ref})
		case domain.HeuristicConstructor:
			err = engine.IncludeHeuristic(params, &Heuristic{engine: engine, ref: ref})
		case domain.NodeselConstructor:
			err = engine.IncludeNodeSelector(params, &NodeSelector{engine: engine, ref: ref})
		default:
			err = fmt.Errorf("unsupported constructor %T", c)
		}
		if err != nil {
			return fmt.Errorf("failed to include %s callback: %w", c.Kind(), err)
		}
	}
	return nil
}

// clearExtensions removes every extension from the engine, returning it to its built-in behavior.
func clearExtensions(engine ports.Engine) error {
	if err := engine.IncludeBranchrule(domain.DefaultBranchrule(), nil); err != nil {
		return fmt.Errorf("failed to clear branchrule callback: %w", err)
	}
	if err := engine.IncludeHeuristic(domain.DefaultHeuristic(), nil); err != nil {
		return fmt.Errorf("failed to clear heuristic callback: %w", err)
	}
	if err := engine.IncludeNodeSelector(domain.DefaultNodesel(), nil); err != nil {
		return fmt.Errorf("failed to clear nodesel callback: %w", err)
	}
	return nil
}

// handle posts call and waits for the controller's answer.
// A collected executor means the run that installed this adapter is gone: the
// callback did not run. A stop token asks the engine to interrupt itself.
func handle(ctx context.Context, engine ports.Engine, ref Ref, call domain.Call) (domain.Result, error) {
	exec := ref.Value()
	if exec == nil {
		return domain.DidNotRun, nil
	}
	if ctx.Err() != nil {
		return domain.DidNotRun, engine.Interrupt()
	}

	result, err := exec.Yield(call)
	if errors.Is(err, coroutine.ErrStopped) {
		return domain.DidNotRun, engine.Interrupt()
	}
	if err != nil {
		return domain.DidNotRun, err
	}
	return result, nil
}

// Branchrule forwards the three branching phases to the controller.
type Branchrule struct {
	engine ports.Engine
	ref    Ref
}

var _ ports.Branchrule = (*Branchrule)(nil)

// ExecLP runs on a fractional LP solution.
func (b *Branchrule) ExecLP(ctx context.Context, allowAddConstraints bool) (domain.Result, error) {
	return b.exec(ctx, domain.BranchruleCall{AllowAddConstraints: allowAddConstraints, Where: domain.WhereLP})
}

// ExecExternal runs on external branching candidates.
func (b *Branchrule) ExecExternal(ctx context.Context, allowAddConstraints bool) (domain.Result, error) {
	return b.exec(ctx, domain.BranchruleCall{AllowAddConstraints: allowAddConstraints, Where: domain.WhereExternal})
}

// ExecPseudo runs on a pseudo solution.
func (b *Branchrule) ExecPseudo(ctx context.Context, allowAddConstraints bool) (domain.Result, error) {
	return b.exec(ctx, domain.BranchruleCall{AllowAddConstraints: allowAddConstraints, Where: domain.WherePseudo})
}

func (b *Branchrule) exec(ctx context.Context, call domain.BranchruleCall) (domain.Result, error) {
	result, err := handle(ctx, b.engine, b.ref, call)
	if err != nil {
		return result, err
	}
	if !BranchResultAllowed(call, result) {
		return domain.DidNotRun, fmt.Errorf("%w: %s during %s branching", domain.ErrInvalidResult, result, call.Where)
	}
	return result, nil
}

// BranchResultAllowed reports whether the engine accepts result from a branching rule
// called with call.
func BranchResultAllowed(call domain.BranchruleCall, result domain.Result) bool {
	switch result {
	case domain.Cutoff, domain.ReducedDom, domain.Branched, domain.DidNotFind, domain.DidNotRun:
		return true
	case domain.ConsAdded:
		return call.AllowAddConstraints
	case domain.Separated:
		return call.Where == domain.WhereLP
	default:
		return false
	}
}

// Heuristic forwards primal heuristic invocations to the controller.
type Heuristic struct {
	engine ports.Engine
	ref    Ref
}

var _ ports.Heuristic = (*Heuristic)(nil)

// Exec runs the heuristic at the given timing.
func (h *Heuristic) Exec(ctx context.Context, timing domain.HeurTiming, nodeInfeasible bool) (domain.Result, error) {
	result, err := handle(ctx, h.engine, h.ref, domain.HeuristicCall{Timing: timing, NodeInfeasible: nodeInfeasible})
	if err != nil {
		return result, err
	}
	switch result {
	case domain.Found, domain.DidNotFind, domain.DidNotRun:
		return result, nil
	default:
		return domain.DidNotRun, fmt.Errorf("%w: %s from heuristic", domain.ErrInvalidResult, result)
	}
}

// NodeSelector forwards node selection to the controller.
// Its answer travels through the selection slot; the resume value only says
// whether a selection was made.
type NodeSelector struct {
	engine ports.Engine
	ref    Ref
}

var _ ports.NodeSelector = (*NodeSelector)(nil)

// Select posts the slot and lets the controller fill it.
func (n *NodeSelector) Select(ctx context.Context, slot *domain.SelectionSlot) error {
	slot.Clear()
	result, err := handle(ctx, n.engine, n.ref, domain.NodeselCall{Slot: slot})
	if err != nil {
		slot.Clear()
		return err
	}
	switch result {
	case domain.Success:
		return nil
	case domain.DidNotRun:
		// Stop tokens and expired runs land here with an untouched slot.
		return nil
	default:
		slot.Clear()
		return fmt.Errorf("%w: %s from node selector", domain.ErrInvalidResult, result)
	}
}

// Compare expresses no preference; the engine's default prioritization decides.
func (n *NodeSelector) Compare(_, _ domain.OpenNode) int {
	return 0
}
