package domain

import "fmt"

// Result is an outcome code handed back to the engine by an extension.
// The set mirrors the engine's own result codes and must not be extended.
type Result int

const (
	// DidNotRun means the extension was skipped.
	DidNotRun Result = iota + 1
	// DidNotFind means the extension searched but produced nothing.
	DidNotFind
	// Found means a primal heuristic found a feasible solution.
	Found
	// Cutoff means the current node was detected to be infeasible.
	Cutoff
	// ConsAdded means a constraint was added to cut off the current solution.
	ConsAdded
	// ReducedDom means a domain reduction made the current solution infeasible.
	ReducedDom
	// Separated means a cutting plane was generated.
	Separated
	// Branched means branching was applied.
	Branched
	// Success means the extension completed its task (node selection made a choice).
	Success
)

var resultNames = map[Result]string{
	DidNotRun:  "did_not_run",
	DidNotFind: "did_not_find",
	Found:      "found",
	Cutoff:     "cutoff",
	ConsAdded:  "cons_added",
	ReducedDom: "reduced_dom",
	Separated:  "separated",
	Branched:   "branched",
	Success:    "success",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// CallKind identifies the reverse callback that posted a Call.
type CallKind int

const (
	KindBranchrule CallKind = iota + 1
	KindHeuristic
	KindNodesel
)

func (k CallKind) String() string {
	switch k {
	case KindBranchrule:
		return "branchrule"
	case KindHeuristic:
		return "heuristic"
	case KindNodesel:
		return "nodesel"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Call is the record a reverse callback posts when the engine pauses.
// The set of implementations is closed: BranchruleCall, HeuristicCall and NodeselCall.
type Call interface {
	Kind() CallKind
	isCall()
}

// BranchWhere tells which search phase triggered a branching call.
type BranchWhere int

const (
	WhereLP BranchWhere = iota + 1
	WhereExternal
	WherePseudo
)

func (w BranchWhere) String() string {
	switch w {
	case WhereLP:
		return "lp"
	case WhereExternal:
		return "external"
	case WherePseudo:
		return "pseudo"
	default:
		return fmt.Sprintf("where(%d)", int(w))
	}
}

// BranchruleCall is posted when the engine asks for a branching decision.
type BranchruleCall struct {
	AllowAddConstraints bool
	Where               BranchWhere
}

func (BranchruleCall) Kind() CallKind { return KindBranchrule }
func (BranchruleCall) isCall() {}

// HeurTiming is a bit mask of the points in the search where a heuristic may run.
type HeurTiming uint32

const (
	TimingBeforeNode HeurTiming = 1 << iota
	TimingAfterLPNode
	TimingAfterPseudoNode
	TimingBeforePresol

	// TimingAfterNode covers both LP and pseudo node completion.
	TimingAfterNode = TimingAfterLPNode | TimingAfterPseudoNode
)

// Has reports whether all bits of other are set in t.
func (t HeurTiming) Has(other HeurTiming) bool {
	return t&other == other
}

// HeuristicCall is posted when the engine invokes the primal heuristic.
type HeuristicCall struct {
	Timing         HeurTiming
	NodeInfeasible bool
}

func (HeuristicCall) Kind() CallKind { return KindHeuristic }
func (HeuristicCall) isCall() {}

// NodeselCall is posted when the engine asks which open node to process next.
// The answer travels through Slot rather than through the resume value.
type NodeselCall struct {
	Slot *SelectionSlot
}

func (NodeselCall) Kind() CallKind { return KindNodesel }
func (NodeselCall) isCall() {}
