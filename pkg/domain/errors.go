package domain

import "errors"

// ErrRunActive is returned when a run is started on a session that already has one in flight.
var ErrRunActive = errors.New("a run is already active on this session")

// ErrNoActiveRun is returned when a run is continued on a session without one.
var ErrNoActiveRun = errors.New("no active run on this session")

// ErrNotStarted is returned when a decision loop is stepped before it was reset.
var ErrNotStarted = errors.New("decision loop is not awaiting a decision")

// ErrAlreadyFinished is returned when a decision loop is stepped after its episode ended.
var ErrAlreadyFinished = errors.New("decision loop already finished")

// ErrUnexpectedCall is returned when the engine pauses at a callback the decision loop did not register.
var ErrUnexpectedCall = errors.New("unexpected callback kind")

// ErrSlotFilled is returned when a selection slot is written twice during one pause.
var ErrSlotFilled = errors.New("selection slot already filled")

// ErrInvalidResult is returned by a reverse callback when the resume value is not an
// outcome code the engine accepts at that extension point.
var ErrInvalidResult = errors.New("invalid result for callback")

// ErrInvalidAction is returned when a decision loop receives an action outside its action set.
var ErrInvalidAction = errors.New("action not in action set")

// ErrSessionClosed is returned by any operation on a closed session.
var ErrSessionClosed = errors.New("session closed")

// ErrEngineFreed is returned by an engine whose resources were released.
var ErrEngineFreed = errors.New("engine freed")

// ErrEpisodeNotFound is returned when an episode id cannot be found.
var ErrEpisodeNotFound = errors.New("episode not found")
