// Package dynamics implements decision loops on top of a session.
//
// A decision loop turns the pauses of one callback kind into a begin/advance
// interface: Reset starts a run and returns the first action set, Step applies a
// decision and returns the next one, until the engine's search ends.
//
// NodeSelection exposes the choice of the next open node. Branching exposes the
// choice of the branching variable. PrimalSearch offers the LP solution at every
// heuristic pause and takes a candidate solution in return.
package dynamics
