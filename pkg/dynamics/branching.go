package dynamics

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
	"github.com/aretw0/stepbnb/pkg/session"
)

// ErrBranchingUnsupported is returned when the session's engine cannot take
// external branching decisions.
var ErrBranchingUnsupported = errors.New("engine does not accept branching decisions")

// Branching lets the caller choose the variable the focus node is branched on.
// The action set is the engine's list of branching candidates.
type Branching struct {
	opts  options
	state state

	brancher   ports.Brancher
	candidates []int
}

// NewBranching creates a loop in the not-started state.
func NewBranching(opts ...Option) *Branching {
	return &Branching{opts: newOptions(opts)}
}

// Reset starts a run on s with only the branching rule registered.
func (d *Branching) Reset(ctx context.Context, s *session.Session) (bool, []int, error) {
	if d.state == stateAwaiting {
		return false, nil, domain.ErrRunActive
	}
	d.opts.logger.Debug("decision loop reset", "from", d.state)
	brancher, ok := s.Engine().(ports.Brancher)
	if !ok {
		return false, nil, ErrBranchingUnsupported
	}
	d.brancher, d.candidates = brancher, nil

	call, finished, err := s.Start(ctx, d.opts.branchrule)
	return d.settle(ctx, s, call, finished, err)
}

// Step branches on choice and runs the engine to the next decision.
// A nil choice leaves branching to the engine's built-in rule.
// A variable outside the candidates is rejected and the decision stays pending.
func (d *Branching) Step(ctx context.Context, s *session.Session, choice *int) (bool, []int, error) {
	switch d.state {
	case stateFinished:
		return false, nil, domain.ErrAlreadyFinished
	case stateNotStarted:
		return false, nil, domain.ErrNotStarted
	}

	result := domain.DidNotRun
	if choice != nil {
		if !slices.Contains(d.candidates, *choice) {
			return false, slices.Clone(d.candidates), fmt.Errorf("%w: variable %d", domain.ErrInvalidAction, *choice)
		}
		if err := d.brancher.Branch(*choice); err != nil {
			return false, slices.Clone(d.candidates), fmt.Errorf("failed to branch on variable %d: %w", *choice, err)
		}
		result = domain.Branched
	}

	call, finished, err := s.Continue(ctx, result)
	return d.settle(ctx, s, call, finished, err)
}

func (d *Branching) settle(ctx context.Context, s *session.Session, call domain.Call, finished bool, err error) (bool, []int, error) {
	for {
		if err != nil {
			d.finish()
			return false, nil, err
		}
		if finished {
			d.finish()
			return true, nil, nil
		}

		if _, ok := call.(domain.BranchruleCall); !ok {
			d.finish()
			return false, nil, errors.Join(
				fmt.Errorf("%w: %s during branching", domain.ErrUnexpectedCall, call.Kind()),
				s.Stop(),
			)
		}
		cands, cerr := d.brancher.BranchCandidates()
		if cerr != nil {
			d.finish()
			return false, nil, errors.Join(fmt.Errorf("failed to list branching candidates: %w", cerr), s.Stop())
		}
		if len(cands) > 0 {
			d.candidates = cands
			d.state = stateAwaiting
			return false, slices.Clone(cands), nil
		}

		d.opts.logger.Debug("no branching candidates, deferring to the engine")
		call, finished, err = s.Continue(ctx, domain.DidNotRun)
	}
}

func (d *Branching) finish() {
	d.candidates = nil
	d.state = stateFinished
}
