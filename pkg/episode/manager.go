// Package episode keeps the live node selection episodes of a long-running process.
//
// Every episode owns an engine and a parked search goroutine, so a Manager
// serializes access per episode id and releases the engine on Delete.
package episode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/stepbnb"
	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/observation"
	"github.com/aretw0/stepbnb/pkg/ports"
)

const lockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type entry[O any] struct {
	env     *stepbnb.Env[O]
	last    stepbnb.Transition[O]
	started time.Time
}

func (e *entry[O]) snapshot(id string) Snapshot[O] {
	snap := Snapshot[O]{ID: id, Started: e.started, Transition: e.last}
	if s := e.env.Session(); s != nil {
		snap.Status = s.Engine().Status()
	}
	return snap
}

// Snapshot is the last transition of an episode.
type Snapshot[O any] struct {
	ID         string
	Started    time.Time
	Status     domain.Status
	Transition stepbnb.Transition[O]
}

// Manager orchestrates episode access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager[O any] struct {
	observe observation.Func[O]
	envOpts []stepbnb.Option

	mu       sync.Mutex
	locks    map[string]*lockEntry
	episodes map[string]*entry[O]

	traces ports.TraceStore
	locker ports.Locker
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*settings)

type settings struct {
	traces  ports.TraceStore
	locker  ports.Locker
	logger  *slog.Logger
	envOpts []stepbnb.Option
}

// WithLocker serializes each episode across processes as well.
func WithLocker(locker ports.Locker) Option {
	return func(s *settings) {
		s.locker = locker
	}
}

// WithLogger configures a logger for the Manager and its episodes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithTraceStore records every decision and serves Trace.
func WithTraceStore(store ports.TraceStore) Option {
	return func(s *settings) {
		s.traces = store
	}
}

// WithEnvOptions passes extra options to every episode env.
func WithEnvOptions(opts ...stepbnb.Option) Option {
	return func(s *settings) {
		s.envOpts = append(s.envOpts, opts...)
	}
}

// NewManager creates a manager whose episodes observe through observe.
func NewManager[O any](observe observation.Func[O], opts ...Option) *Manager[O] {
	s := settings{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}

	envOpts := append([]stepbnb.Option{stepbnb.WithLogger(s.logger)}, s.envOpts...)
	if s.traces != nil {
		envOpts = append(envOpts, stepbnb.WithTraceStore(s.traces))
	}
	return &Manager[O]{
		observe:  observe,
		envOpts:  envOpts,
		locks:    make(map[string]*lockEntry),
		episodes: make(map[string]*entry[O]),
		traces:   s.traces,
		locker:   s.locker,
		logger:   s.logger,
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager[O]) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[id]
	if !ok {
		e = &lockEntry{}
		m.locks[id] = e
	}
	e.refs++
	return e
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager[O]) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock executes fn while holding the lock for the episode.
func (m *Manager[O]) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	e := m.acquire(id)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "episode:"+id, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"episode", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager[O]) lookup(id string) (*entry[O], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.episodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEpisodeNotFound, id)
	}
	return e, nil
}

// Start builds an engine with factory and runs it to the first decision.
func (m *Manager[O]) Start(ctx context.Context, factory stepbnb.Factory) (Snapshot[O], error) {
	env := stepbnb.New(factory, m.observe, m.envOpts...)
	tr, err := env.Reset(ctx)
	if err != nil {
		if cerr := env.Close(); cerr != nil {
			m.logger.Warn("Failed to close episode after failed start", "err", cerr)
		}
		return Snapshot[O]{}, err
	}

	id := env.EpisodeID()
	e := &entry[O]{env: env, last: tr, started: time.Now().UTC()}
	m.mu.Lock()
	m.episodes[id] = e
	m.mu.Unlock()

	m.logger.Info("Episode started", "episode", id, "done", tr.Done, "actions", tr.ActionSet.Len())
	return e.snapshot(id), nil
}

// Step answers the pending decision of episode id.
func (m *Manager[O]) Step(ctx context.Context, id string, choice *domain.NodeID) (Snapshot[O], error) {
	var snap Snapshot[O]
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		e, err := m.lookup(id)
		if err != nil {
			return err
		}
		tr, err := e.env.Step(ctx, choice)
		if err != nil {
			return err
		}
		e.last = tr
		snap = e.snapshot(id)
		return nil
	})
	return snap, err
}

// Get returns the last transition of episode id.
func (m *Manager[O]) Get(ctx context.Context, id string) (Snapshot[O], error) {
	var snap Snapshot[O]
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		e, err := m.lookup(id)
		if err != nil {
			return err
		}
		snap = e.snapshot(id)
		return nil
	})
	return snap, err
}

// Delete cancels the episode's run and frees its engine. The trace is kept.
func (m *Manager[O]) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		m.mu.Lock()
		e, ok := m.episodes[id]
		delete(m.episodes, id)
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrEpisodeNotFound, id)
		}
		if err := e.env.Close(); err != nil {
			return fmt.Errorf("failed to close episode %s: %w", id, err)
		}
		m.logger.Info("Episode deleted", "episode", id)
		return nil
	})
}

// Trace returns the recorded decisions of an episode, live or deleted.
func (m *Manager[O]) Trace(ctx context.Context, id string) ([]domain.Step, error) {
	if m.traces == nil {
		return nil, fmt.Errorf("%w: no trace store configured", domain.ErrEpisodeNotFound)
	}
	return m.traces.Load(ctx, id)
}

// List returns the ids of the live episodes, sorted.
func (m *Manager[O]) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.episodes))
	for id := range m.episodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close deletes every live episode.
func (m *Manager[O]) Close(ctx context.Context) error {
	var errs []error
	for _, id := range m.List() {
		if err := m.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("episode %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close %d episodes: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
