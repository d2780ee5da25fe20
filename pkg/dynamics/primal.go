package dynamics

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
	"github.com/aretw0/stepbnb/pkg/session"
)

// ErrPrimalUnsupported is returned when the session's engine does not accept
// external solutions.
var ErrPrimalUnsupported = errors.New("engine does not accept primal solutions")

// HeuristicPause is what the caller sees at a primal heuristic pause.
// LPSolution is empty when the engine has no relaxation at this timing.
type HeuristicPause struct {
	Call       domain.HeuristicCall
	LPSolution []float64
}

// PrimalSearch lets the caller propose solutions whenever the engine runs its
// primal heuristic. The engine keeps node selection and branching.
type PrimalSearch struct {
	opts  options
	state state

	receiver ports.PrimalReceiver
	pause    HeuristicPause
	found    int
}

// NewPrimalSearch creates a loop in the not-started state.
func NewPrimalSearch(opts ...Option) *PrimalSearch {
	return &PrimalSearch{opts: newOptions(opts)}
}

// Reset starts a run on s with only the primal heuristic registered.
func (d *PrimalSearch) Reset(ctx context.Context, s *session.Session) (bool, HeuristicPause, error) {
	if d.state == stateAwaiting {
		return false, HeuristicPause{}, domain.ErrRunActive
	}
	d.opts.logger.Debug("decision loop reset", "from", d.state)
	receiver, ok := s.Engine().(ports.PrimalReceiver)
	if !ok {
		return false, HeuristicPause{}, ErrPrimalUnsupported
	}
	d.receiver, d.found = receiver, 0

	call, finished, err := s.Start(ctx, d.opts.heuristic)
	return d.settle(s, call, finished, err)
}

// Step offers solution to the engine and runs it to the next heuristic pause.
// A nil solution reports that nothing was found. A solution the engine rejects
// as malformed is an invalid action and the decision stays pending.
func (d *PrimalSearch) Step(ctx context.Context, s *session.Session, solution []int) (bool, HeuristicPause, error) {
	switch d.state {
	case stateFinished:
		return false, HeuristicPause{}, domain.ErrAlreadyFinished
	case stateNotStarted:
		return false, HeuristicPause{}, domain.ErrNotStarted
	}

	result := domain.DidNotFind
	if solution != nil {
		improved, err := d.receiver.AddSolution(solution)
		if err != nil {
			return false, d.pause, fmt.Errorf("%w: %w", domain.ErrInvalidAction, err)
		}
		if improved {
			d.found++
			result = domain.Found
		}
	}

	call, finished, err := s.Continue(ctx, result)
	return d.settle(s, call, finished, err)
}

// Found returns how many proposed solutions improved the incumbent since Reset.
func (d *PrimalSearch) Found() int {
	return d.found
}

func (d *PrimalSearch) settle(s *session.Session, call domain.Call, finished bool, err error) (bool, HeuristicPause, error) {
	d.pause = HeuristicPause{}
	if err != nil {
		d.state = stateFinished
		return false, HeuristicPause{}, err
	}
	if finished {
		d.state = stateFinished
		return true, HeuristicPause{}, nil
	}

	hc, ok := call.(domain.HeuristicCall)
	if !ok {
		d.state = stateFinished
		return false, HeuristicPause{}, errors.Join(
			fmt.Errorf("%w: %s during primal search", domain.ErrUnexpectedCall, call.Kind()),
			s.Stop(),
		)
	}
	d.pause.Call = hc
	if lp, ok := d.receiver.LPSolution(); ok && !hc.NodeInfeasible {
		d.pause.LPSolution = lp
	}
	d.state = stateAwaiting
	return false, d.pause, nil
}
