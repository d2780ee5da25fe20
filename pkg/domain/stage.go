package domain

import "fmt"

// Stage is the engine's solve-stage indicator.
type Stage int

const (
	StageInit Stage = iota
	StageProblem
	StagePresolving
	StageSolving
	StageSolved
	StageFreed
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageProblem:
		return "problem"
	case StagePresolving:
		return "presolving"
	case StageSolving:
		return "solving"
	case StageSolved:
		return "solved"
	case StageFreed:
		return "freed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Status describes why the engine stopped.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusInfeasible
	StatusNodeLimit
	StatusUserInterrupt
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusNodeLimit:
		return "node_limit"
	case StatusUserInterrupt:
		return "user_interrupt"
	default:
		return "unknown"
	}
}
