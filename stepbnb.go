package stepbnb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/dynamics"
	"github.com/aretw0/stepbnb/pkg/observability"
	"github.com/aretw0/stepbnb/pkg/observation"
	"github.com/aretw0/stepbnb/pkg/ports"
	"github.com/aretw0/stepbnb/pkg/session"
)

// Factory builds the engine for a new episode. The engine must hold a problem.
type Factory func(ctx context.Context) (ports.Engine, error)

// Transition is what the caller sees after Reset or Step.
type Transition[O any] struct {
	// Observation is only meaningful when HasObservation is true.
	Observation    O
	HasObservation bool
	ActionSet      domain.ActionSet
	Done           bool
}

// Option configures an Env.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	traces  ports.TraceStore
	metrics *observability.Metrics
	locker  ports.Locker
	nodesel domain.NodeselConstructor
}

// WithLogger sets the logger shared by the env, its sessions and its decision loop.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTraceStore records every decision of every episode.
func WithTraceStore(store ports.TraceStore) Option {
	return func(c *config) {
		c.traces = store
	}
}

// WithMetrics records run and decision metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithLocker extends the session duplicate lock across processes.
func WithLocker(locker ports.Locker) Option {
	return func(c *config) {
		c.locker = locker
	}
}

// WithNodeselParams overrides the node selector registration parameters.
func WithNodeselParams(params domain.NodeselConstructor) Option {
	return func(c *config) {
		c.nodesel = params
	}
}

// Env runs node selection episodes, one engine per episode.
// An Env is owned by one goroutine at a time.
type Env[O any] struct {
	factory Factory
	observe observation.Func[O]
	cfg     config

	session *session.Session
	loop    *dynamics.NodeSelection
	episode string
	steps   int
	offered domain.ActionSet
}

// New creates an env. No engine is built until Reset.
func New[O any](factory Factory, observe observation.Func[O], opts ...Option) *Env[O] {
	cfg := config{
		logger:  logging.NewNop(),
		nodesel: domain.DefaultNodesel(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Env[O]{factory: factory, observe: observe, cfg: cfg}
}

// Reset discards the current episode, if any, and starts a new one.
func (e *Env[O]) Reset(ctx context.Context) (Transition[O], error) {
	if err := e.closeSession(); err != nil {
		e.cfg.logger.Warn("Previous episode did not shut down cleanly", "episode", e.episode, "err", err)
	}

	engine, err := e.factory(ctx)
	if err != nil {
		return Transition[O]{}, fmt.Errorf("failed to build engine: %w", err)
	}
	e.session = session.New(engine,
		session.WithLogger(e.cfg.logger),
		session.WithMetrics(e.cfg.metrics),
		session.WithLocker(e.cfg.locker),
	)
	e.loop = dynamics.NewNodeSelection(
		dynamics.WithLogger(e.cfg.logger),
		dynamics.WithMetrics(e.cfg.metrics),
		dynamics.WithNodeselParams(e.cfg.nodesel),
	)
	e.episode = uuid.NewString()
	e.steps = 0
	e.cfg.logger.Debug("episode started", "episode", e.episode)

	done, set, err := e.loop.Reset(ctx, e.session)
	if err != nil {
		return Transition[O]{}, fmt.Errorf("failed to start episode: %w", err)
	}
	return e.transition(done, set), nil
}

// Step answers the pending node selection. A nil choice declines to select,
// which ends the engine's search.
func (e *Env[O]) Step(ctx context.Context, choice *domain.NodeID) (Transition[O], error) {
	if e.loop == nil {
		return Transition[O]{}, domain.ErrNotStarted
	}
	offered := e.offered
	done, set, err := e.loop.Step(ctx, e.session, choice)
	if err != nil {
		return Transition[O]{}, err
	}
	e.record(ctx, offered, choice, done)
	return e.transition(done, set), nil
}

// EpisodeID returns the id of the current episode, or "" before the first Reset.
func (e *Env[O]) EpisodeID() string {
	return e.episode
}

// Session returns the session of the current episode, or nil before the first Reset.
func (e *Env[O]) Session() *session.Session {
	return e.session
}

// Close ends the current episode and frees its engine.
func (e *Env[O]) Close() error {
	return e.closeSession()
}

func (e *Env[O]) closeSession() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session, e.loop = nil, nil
	return err
}

func (e *Env[O]) transition(done bool, set domain.ActionSet) Transition[O] {
	e.offered = set
	obs, ok := e.observe.Extract(e.session.Engine(), done)
	return Transition[O]{Observation: obs, HasObservation: ok, ActionSet: set, Done: done}
}

// record appends the decision to the trace store. Store failures are only logged.
func (e *Env[O]) record(ctx context.Context, offered domain.ActionSet, choice *domain.NodeID, done bool) {
	step := domain.Step{Index: e.steps, ActionSet: offered, Done: done, At: time.Now().UTC()}
	if choice != nil {
		id := *choice
		step.Choice = &id
	}
	e.steps++
	if e.cfg.traces == nil {
		return
	}
	if err := e.cfg.traces.Append(ctx, e.episode, step); err != nil && !errors.Is(err, context.Canceled) {
		e.cfg.logger.Warn("Failed to record step", "episode", e.episode, "step", step.Index, "err", err)
	}
}
