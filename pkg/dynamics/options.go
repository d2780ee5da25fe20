package dynamics

import (
	"log/slog"

	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/observability"
)

// Option configures a decision loop.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    *observability.Metrics
	nodesel    domain.NodeselConstructor
	branchrule domain.BranchruleConstructor
	heuristic  domain.HeuristicConstructor
}

func newOptions(opts []Option) options {
	o := options{
		logger:     logging.NewNop(),
		nodesel:    domain.DefaultNodesel(),
		branchrule: domain.DefaultBranchrule(),
		heuristic:  domain.DefaultHeuristic(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger configures the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records action set sizes.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNodeselParams overrides the node selector registration parameters.
func WithNodeselParams(params domain.NodeselConstructor) Option {
	return func(o *options) {
		o.nodesel = params
	}
}

// WithBranchruleParams overrides the branching rule registration parameters.
func WithBranchruleParams(params domain.BranchruleConstructor) Option {
	return func(o *options) {
		o.branchrule = params
	}
}

// WithHeuristicParams overrides the primal heuristic registration parameters.
func WithHeuristicParams(params domain.HeuristicConstructor) Option {
	return func(o *options) {
		o.heuristic = params
	}
}

type state int

const (
	stateNotStarted state = iota
	stateAwaiting
	stateFinished
)

func (s state) String() string {
	switch s {
	case stateAwaiting:
		return "awaiting_decision"
	case stateFinished:
		return "finished"
	default:
		return "not_started"
	}
}
