package dynamics

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
	"github.com/aretw0/stepbnb/pkg/session"
)

// NodeSelection lets the caller choose which open node the engine processes next.
//
// At every node selection pause it offers the ids of the open leaves, children and
// siblings. An id that is not in the latest action set is treated exactly like no
// choice at all: the slot stays empty and the engine ends its search.
type NodeSelection struct {
	opts  options
	state state

	slot    *domain.SelectionSlot
	table   map[domain.NodeID]domain.NodeHandle
	actions domain.ActionSet
}

// NewNodeSelection creates a loop in the not-started state.
func NewNodeSelection(opts ...Option) *NodeSelection {
	return &NodeSelection{
		opts:  newOptions(opts),
		table: make(map[domain.NodeID]domain.NodeHandle),
	}
}

// Reset starts a run on s with only the node selector registered.
// It returns done=true when the search ended before the first decision.
func (d *NodeSelection) Reset(ctx context.Context, s *session.Session) (bool, domain.ActionSet, error) {
	if d.state == stateAwaiting {
		return false, domain.ActionSet{}, domain.ErrRunActive
	}
	d.opts.logger.Debug("decision loop reset", "from", d.state)
	d.clear()
	call, finished, err := s.Start(ctx, d.opts.nodesel)
	return d.settle(ctx, s, call, finished, err)
}

// Step applies choice and runs the engine to the next decision.
// A nil choice declines to select a node.
func (d *NodeSelection) Step(ctx context.Context, s *session.Session, choice *domain.NodeID) (bool, domain.ActionSet, error) {
	switch d.state {
	case stateFinished:
		return false, domain.ActionSet{}, domain.ErrAlreadyFinished
	case stateNotStarted:
		return false, domain.ActionSet{}, domain.ErrNotStarted
	}

	result := domain.DidNotRun
	if choice != nil {
		if h, ok := d.table[*choice]; ok {
			if err := d.slot.Set(h); err != nil {
				return false, domain.ActionSet{}, err
			}
			result = domain.Success
		} else {
			d.opts.logger.Warn("Node id not in action set, treating as no selection", "node", *choice)
		}
	}

	call, finished, err := s.Continue(ctx, result)
	return d.settle(ctx, s, call, finished, err)
}

// ActionSet returns the action set of the pending decision.
func (d *NodeSelection) ActionSet() (domain.ActionSet, bool) {
	if d.state != stateAwaiting {
		return domain.ActionSet{}, false
	}
	return d.actions, true
}

func (d *NodeSelection) settle(ctx context.Context, s *session.Session, call domain.Call, finished bool, err error) (bool, domain.ActionSet, error) {
	for {
		if err != nil {
			d.finish()
			return false, domain.ActionSet{}, err
		}
		if finished {
			d.finish()
			return true, domain.ActionSet{}, nil
		}

		ns, ok := call.(domain.NodeselCall)
		if !ok {
			d.finish()
			return false, domain.ActionSet{}, errors.Join(
				fmt.Errorf("%w: %s during node selection", domain.ErrUnexpectedCall, call.Kind()),
				s.Stop(),
			)
		}
		if err := d.rebuild(s.Engine(), ns.Slot); err != nil {
			d.finish()
			return false, domain.ActionSet{}, errors.Join(err, s.Stop())
		}
		if d.actions.Len() > 0 {
			d.state = stateAwaiting
			d.opts.metrics.ObserveActionSet(d.actions)
			return false, d.actions, nil
		}

		// Nothing to choose from: answer for the caller.
		d.opts.logger.Debug("empty action set, declining selection")
		call, finished, err = s.Continue(ctx, domain.DidNotRun)
	}
}

// rebuild recomputes the action set and node table from the engine's open nodes.
func (d *NodeSelection) rebuild(engine ports.Engine, slot *domain.SelectionSlot) error {
	d.clear()
	d.slot = slot
	d.slot.Clear()

	open, err := engine.OpenNodes()
	if err != nil {
		return fmt.Errorf("failed to list open nodes: %w", err)
	}
	d.actions = domain.ActionSet{
		Leaves:   d.index(open.Leaves),
		Children: d.index(open.Children),
		Siblings: d.index(open.Siblings),
	}
	return nil
}

func (d *NodeSelection) index(nodes []domain.OpenNode) []domain.NodeID {
	ids := make([]domain.NodeID, 0, len(nodes))
	for _, n := range nodes {
		d.table[n.ID] = n.Handle
		ids = append(ids, n.ID)
	}
	return ids
}

func (d *NodeSelection) clear() {
	clear(d.table)
	if d.slot != nil {
		d.slot.Clear()
	}
	d.slot = nil
	d.actions = domain.ActionSet{}
}

func (d *NodeSelection) finish() {
	d.clear()
	d.state = stateFinished
}
