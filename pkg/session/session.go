package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/stepbnb/internal/coroutine"
	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/internal/reverse"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/observability"
	"github.com/aretw0/stepbnb/pkg/ports"
)

// duplicateLock serializes engine copies across every session of the process.
var duplicateLock sync.Mutex

const (
	// CopyLockKey is the ports.Locker key taken around engine copies.
	CopyLockKey = "engine-copy"
	copyLockTTL = 30 * time.Second
)

type controller = coroutine.Controller[domain.Call, domain.Result]

// Session binds an engine to the stepping machinery.
type Session struct {
	engine ports.Engine
	opts   []Option

	logger  *slog.Logger
	locker  ports.Locker
	metrics *observability.Metrics

	ctrl     *controller
	cancel   context.CancelFunc
	pausedAt time.Time
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger configures a logger for run lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLocker extends the duplicate lock across processes.
func WithLocker(locker ports.Locker) Option {
	return func(s *Session) {
		s.locker = locker
	}
}

// WithMetrics records pauses, runs and copies.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// New creates a session owning engine.
func New(engine ports.Engine, opts ...Option) *Session {
	s := &Session{
		engine: engine,
		opts:   opts,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the owned engine. Queries are only safe while no run is active
// or while the active run is paused.
func (s *Session) Engine() ports.Engine {
	return s.engine
}

// Active reports whether a run is in flight.
func (s *Session) Active() bool {
	return s.ctrl != nil && !s.ctrl.Finished()
}

// Start registers the reverse callbacks built from constructors and runs the
// engine's Solve until its first pause. Callbacks of earlier runs are removed,
// so a kind not named by constructors falls back to the engine's own rule. It returns finished=true, and no call,
// when Solve completed without pausing.
//
// The run outlives ctx: ctx bounds only the wait for the first pause. Canceling it
// during that wait stops the run.
func (s *Session) Start(ctx context.Context, constructors ...domain.Constructor) (domain.Call, bool, error) {
	if s.closed {
		return nil, false, domain.ErrSessionClosed
	}
	if s.Active() {
		return nil, false, domain.ErrRunActive
	}
	s.ctrl = nil

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ctrl := coroutine.New[domain.Call, domain.Result](coroutine.WithLogger(s.logger))
	s.ctrl, s.cancel = ctrl, cancel

	engine := s.engine
	s.logger.Debug("run starting", "controller", ctrl.Serial(), "callbacks", len(constructors))
	call, finished, err := ctrl.Start(ctx, func(_ context.Context, ref reverse.Ref) error {
		if err := reverse.Include(engine, ref, constructors...); err != nil {
			return err
		}
		return engine.Solve(runCtx)
	})
	return s.settle(call, finished, err)
}

// Continue resumes the paused engine with result and waits for the next pause.
// Canceling ctx during the wait stops the run.
func (s *Session) Continue(ctx context.Context, result domain.Result) (domain.Call, bool, error) {
	if s.closed {
		return nil, false, domain.ErrSessionClosed
	}
	if s.ctrl == nil || !s.ctrl.Pending() {
		return nil, false, domain.ErrNoActiveRun
	}
	s.metrics.ObserveDecision(time.Since(s.pausedAt))
	call, finished, err := s.ctrl.Resume(ctx, result)
	return s.settle(call, finished, err)
}

// settle turns a controller outcome into the session's view of it.
func (s *Session) settle(call domain.Call, finished bool, err error) (domain.Call, bool, error) {
	if finished {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			s.logger.Warn("run failed", "err", err)
		} else {
			s.logger.Debug("run finished", "stage", s.engine.Stage(), "status", s.engine.Status())
		}
		s.metrics.ObserveRun(outcome)
		s.release()
		if err != nil {
			return nil, true, fmt.Errorf("engine run failed: %w", err)
		}
		return nil, true, nil
	}
	if err != nil {
		// Only a canceled wait gets here; the worker is still live.
		stopErr := s.Stop()
		return nil, false, errors.Join(err, stopErr)
	}

	s.pausedAt = time.Now()
	s.metrics.ObservePause(call.Kind())
	s.logger.Debug("run paused", "kind", call.Kind())
	return call, false, nil
}

// Stop interrupts the in-flight run, if any, and joins its worker.
// The engine stays usable.
func (s *Session) Stop() error {
	if s.ctrl == nil {
		return nil
	}
	active := !s.ctrl.Finished()
	s.cancel()
	err := s.ctrl.Close()
	s.ctrl, s.cancel = nil, nil
	if active {
		s.metrics.ObserveRun("stopped")
		s.logger.Debug("run stopped", "status", s.engine.Status())
	}
	if err != nil {
		return fmt.Errorf("engine run failed while stopping: %w", err)
	}
	return nil
}

// release drops a finished controller.
func (s *Session) release() {
	if s.ctrl == nil {
		return
	}
	s.cancel()
	// The worker already exited and its error was reported.
	_ = s.ctrl.Close()
	s.ctrl, s.cancel = nil, nil
}

// Close stops any in-flight run and frees the engine.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	stopErr := s.Stop()
	s.closed = true
	if err := s.engine.Free(); err != nil {
		return errors.Join(stopErr, fmt.Errorf("failed to free engine: %w", err))
	}
	return stopErr
}

// Duplicate returns a new session owning a copy of the engine's problem.
// The copy carries none of the in-flight search. An engine that was never given a
// problem copies to a fresh empty engine.
func (s *Session) Duplicate(ctx context.Context) (*Session, error) {
	if s.closed {
		return nil, domain.ErrSessionClosed
	}

	duplicateLock.Lock()
	defer duplicateLock.Unlock()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, CopyLockKey, copyLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire copy lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.Warn("Failed to release copy lock (will expire via TTL)", "err", err)
			}
		}()
	}

	engine, err := s.engine.Copy()
	s.metrics.ObserveCopy(err)
	if err != nil {
		return nil, fmt.Errorf("failed to copy engine: %w", err)
	}
	return New(engine, s.opts...), nil
}
