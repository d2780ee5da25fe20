package domain

import (
	"slices"
)

// NodeID is the engine's own node number.
// It increases monotonically during a run and is never reused.
type NodeID int64

// NodeHandle is an engine-issued index into the engine's node arena.
// Handles are only meaningful to the engine that issued them and only while
// the node is open.
type NodeHandle int

// NoNode is the empty handle.
const NoNode NodeHandle = -1

// OpenNode pairs the stable id of an open node with its handle.
type OpenNode struct {
	ID     NodeID
	Handle NodeHandle
}

// OpenNodes groups the open nodes by their position relative to the focus node.
type OpenNodes struct {
	Leaves   []OpenNode
	Children []OpenNode
	Siblings []OpenNode
}

// Len returns the total number of open nodes.
func (o OpenNodes) Len() int {
	return len(o.Leaves) + len(o.Children) + len(o.Siblings)
}

// ActionSet is the read-only view of open node ids offered at a node selection pause.
type ActionSet struct {
	Leaves   []NodeID `json:"leaves"`
	Children []NodeID `json:"children"`
	Siblings []NodeID `json:"siblings"`
}

// Len returns the number of admissible ids.
func (a ActionSet) Len() int {
	return len(a.Leaves) + len(a.Children) + len(a.Siblings)
}

// Contains reports whether id is one of the admissible ids.
func (a ActionSet) Contains(id NodeID) bool {
	return slices.Contains(a.Leaves, id) || slices.Contains(a.Children, id) || slices.Contains(a.Siblings, id)
}

// All returns leaves, children and siblings concatenated in that order.
func (a ActionSet) All() []NodeID {
	all := make([]NodeID, 0, a.Len())
	all = append(all, a.Leaves...)
	all = append(all, a.Children...)
	return append(all, a.Siblings...)
}

// SelectionSlot is the out-parameter of node selection.
// It is written at most once per pause; the engine reads it when the worker resumes.
type SelectionSlot struct {
	handle NodeHandle
	set    bool
}

// Set stores the selected handle.
// It returns ErrSlotFilled if a handle was already stored since the last Clear.
func (s *SelectionSlot) Set(h NodeHandle) error {
	if s.set {
		return ErrSlotFilled
	}
	s.handle = h
	s.set = true
	return nil
}

// Clear empties the slot.
func (s *SelectionSlot) Clear() {
	s.handle = NoNode
	s.set = false
}

// Selected returns the stored handle, if any.
func (s *SelectionSlot) Selected() (NodeHandle, bool) {
	if s == nil || !s.set {
		return NoNode, false
	}
	return s.handle, true
}

// FocusNodeInfo is a snapshot of the node currently (or most recently) processed by the engine.
type FocusNodeInfo struct {
	Number           NodeID  `json:"number"`
	Depth            int     `json:"depth"`
	Bound            float64 `json:"bound"`
	Estimate         float64 `json:"estimate"`
	AddedConstraints int     `json:"n_added_conss"`
	Variables        int     `json:"n_vars"`
	LPCandidates     int     `json:"n_lp_cands"`
	PseudoCandidates int     `json:"n_pseudo_cands"`
	ParentNumber     NodeID  `json:"parent_number"`
	ParentBound      float64 `json:"parent_bound"`
}

// LPColumn describes one column of the current LP relaxation.
// Values are the column's non-zero coefficients and RowRHS the right-hand sides
// of the rows those coefficients belong to.
type LPColumn struct {
	Position int
	Values   []float64
	RowRHS   []float64
}
