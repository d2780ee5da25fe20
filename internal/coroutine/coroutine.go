// Package coroutine turns one blocking call with callback reentry into a pull-based
// sequence of pauses.
//
// A Controller runs an entry function on a worker goroutine. Whenever code inside
// that entry calls Executor.Yield, the call record is handed to the controlling
// goroutine and the worker parks until Controller.Resume delivers a value. Posts and
// resumes strictly alternate: at any instant exactly one of the two goroutines runs.
//
// Closing a Controller delivers the stop token. A worker parked in Yield (and every
// later Yield of the same run) returns ErrStopped instead of a value, so the caller
// can unwind through its own interruption path. Close joins the worker before it returns.
package coroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"weak"

	"code.hybscloud.com/atomix"

	"github.com/aretw0/stepbnb/internal/logging"
)

var (
	// ErrStopped is returned by Yield once the stop token was delivered.
	ErrStopped = errors.New("coroutine: stopped")
	// ErrNothingPending is returned by Resume when no call is waiting for a value.
	ErrNothingPending = errors.New("coroutine: no pending call to resume")
	// ErrFinished is returned by Resume after the worker terminated.
	ErrFinished = errors.New("coroutine: worker finished")
	// ErrClosed is returned by any operation on a closed controller.
	ErrClosed = errors.New("coroutine: controller closed")
	// ErrStarted is returned when Start is called twice on the same controller.
	ErrStarted = errors.New("coroutine: already started")
	// ErrPanic wraps a panic recovered from the entry function.
	ErrPanic = errors.New("coroutine: entry panicked")
	// ErrPending is returned by Wait while a posted call still waits for Resume.
	ErrPending = errors.New("coroutine: call still pending")
)

// serials numbers controllers for log correlation.
var serials atomix.Uint32

// Executor is the worker side of the rendezvous.
// Its methods must only be called from the worker goroutine.
type Executor[C, R any] struct {
	calls   chan C
	resumes chan R
	stop    chan struct{}
	serial  uint32
}

// Serial returns the number of the controller owning this executor.
func (e *Executor[C, R]) Serial() uint32 {
	return e.serial
}

// Yield posts call to the controller and parks until a value is resumed.
// It returns ErrStopped, without blocking, once the stop token was delivered.
func (e *Executor[C, R]) Yield(call C) (R, error) {
	var zero R
	select {
	case <-e.stop:
		return zero, ErrStopped
	default:
	}

	select {
	case e.calls <- call:
	case <-e.stop:
		return zero, ErrStopped
	}

	select {
	case r := <-e.resumes:
		return r, nil
	case <-e.stop:
		return zero, ErrStopped
	}
}

// Entry is the blocking function run by the worker.
// It receives a weak reference so that extensions registered with long-lived
// objects never keep a discarded controller alive.
type Entry[C, R any] func(ctx context.Context, exec weak.Pointer[Executor[C, R]]) error

// Option configures a Controller.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger configures a logger for pause and resume events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Controller is the controlling side of the rendezvous.
// A Controller is owned by a single goroutine; its methods are not safe for concurrent use.
type Controller[C, R any] struct {
	exec   *Executor[C, R]
	done   chan struct{}
	logger *slog.Logger

	// err is written by the worker before done is closed.
	err error

	started  bool
	pending  bool
	finished bool
	reported bool
	closed   bool
	stopOnce sync.Once
}

// New creates an idle controller.
func New[C, R any](opts ...Option) *Controller[C, R] {
	cfg := config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	serial := serials.Add(1)
	return &Controller[C, R]{
		exec: &Executor[C, R]{
			calls:   make(chan C),
			resumes: make(chan R),
			stop:    make(chan struct{}),
			serial:  serial,
		},
		done:   make(chan struct{}),
		logger: cfg.logger.With("controller", serial),
	}
}

// Serial returns the controller number used in log fields.
func (c *Controller[C, R]) Serial() uint32 {
	return c.exec.serial
}

// Start launches the worker and waits for its first post or termination.
func (c *Controller[C, R]) Start(ctx context.Context, entry Entry[C, R]) (C, bool, error) {
	var zero C
	if c.closed {
		return zero, false, ErrClosed
	}
	if c.started {
		return zero, false, ErrStarted
	}
	c.started = true

	ref := weak.Make(c.exec)
	go func() {
		defer close(c.done)
		defer func() {
			if r := recover(); r != nil {
				c.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		c.err = entry(ctx, ref)
	}()
	c.logger.Debug("worker started")

	return c.Wait(ctx)
}

// Wait blocks until the worker posts a call or terminates.
// On termination it returns finished=true and the entry's error.
// A canceled ctx abandons the wait but leaves the worker untouched; Close still joins it.
func (c *Controller[C, R]) Wait(ctx context.Context) (C, bool, error) {
	var zero C
	if c.closed {
		return zero, false, ErrClosed
	}
	if c.finished {
		return zero, true, c.report()
	}
	if c.pending {
		return zero, false, ErrPending
	}

	select {
	case call := <-c.exec.calls:
		c.pending = true
		c.logger.Debug("worker paused")
		return call, false, nil
	case <-c.done:
		c.finished = true
		c.logger.Debug("worker finished", "err", c.err)
		return zero, true, c.report()
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Resume delivers r to the parked worker and waits for its next post or termination.
func (c *Controller[C, R]) Resume(ctx context.Context, r R) (C, bool, error) {
	var zero C
	if c.closed {
		return zero, false, ErrClosed
	}
	if c.finished {
		return zero, false, ErrFinished
	}
	if !c.pending {
		return zero, false, ErrNothingPending
	}

	// The worker is parked receiving on resumes; the done case only guards
	// against an entry that recovered from Yield in an unexpected way.
	select {
	case c.exec.resumes <- r:
		c.pending = false
	case <-c.done:
		c.pending = false
		c.finished = true
		return zero, true, c.report()
	}
	c.logger.Debug("worker resumed")
	return c.Wait(ctx)
}

// Pending reports whether a posted call is waiting for a resume value.
func (c *Controller[C, R]) Pending() bool {
	return c.pending
}

// Finished reports whether the worker terminated.
func (c *Controller[C, R]) Finished() bool {
	return c.finished
}

// Close delivers the stop token and joins the worker.
// It returns the entry's error if it was not already returned by Wait.
func (c *Controller[C, R]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.started {
		return nil
	}

	c.stopOnce.Do(func() { close(c.exec.stop) })
	if !c.finished {
		c.logger.Debug("stop token delivered", "pending", c.pending)
	}
	<-c.done
	c.pending = false
	c.finished = true
	if c.err != nil && !c.reported {
		c.reported = true
		return c.err
	}
	return nil
}

func (c *Controller[C, R]) report() error {
	c.reported = true
	return c.err
}
