package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stepbnb/internal/config"
	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/dynamics"
	"github.com/aretw0/stepbnb/pkg/observability"
	"github.com/aretw0/stepbnb/pkg/session"
)

// VariablePolicy picks a branching variable among the candidates.
// Nil leaves the choice to the engine's built-in rule.
type VariablePolicy func(candidates []int) *int

// VariablePolicies lists the names accepted by ParseVariablePolicy.
var VariablePolicies = []string{"first", "last", "default"}

// ParseVariablePolicy returns the named built-in branching policy.
func ParseVariablePolicy(name string) (VariablePolicy, error) {
	switch name {
	case "first":
		return func(c []int) *int { return pick(c, 0) }, nil
	case "last":
		return func(c []int) *int { return pick(c, len(c)-1) }, nil
	case "default":
		return func([]int) *int { return nil }, nil
	}
	return nil, fmt.Errorf("unknown branching policy %q (want one of %v)", name, VariablePolicies)
}

func pick(c []int, i int) *int {
	if len(c) == 0 {
		return nil
	}
	v := c[i]
	return &v
}

// BranchOptions configures one branching episode.
type BranchOptions struct {
	Config  *config.Config
	Policy  VariablePolicy
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Branch plays one episode in which the policy chooses every branching variable.
// Node selection stays with the engine.
func Branch(ctx context.Context, opts BranchOptions) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	params, err := opts.Config.Branchrule()
	if err != nil {
		return Result{}, err
	}
	factory, err := EngineFactory(opts.Config, logger)
	if err != nil {
		return Result{}, err
	}
	engine, err := factory(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build engine: %w", err)
	}

	s := session.New(engine, session.WithLogger(logger), session.WithMetrics(opts.Metrics))
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close session", "err", err)
		}
	}()
	loop := dynamics.NewBranching(
		dynamics.WithLogger(logger),
		dynamics.WithMetrics(opts.Metrics),
		dynamics.WithBranchruleParams(params),
	)

	id := uuid.NewString()
	start := time.Now()
	done, candidates, err := loop.Reset(ctx, s)
	steps := 0
	for err == nil && !done {
		done, candidates, err = loop.Step(ctx, s, opts.Policy(candidates))
		steps++
	}
	if err != nil {
		return Result{}, fmt.Errorf("branching episode %s step %d: %w", id, steps, err)
	}

	res := summarize(id, engine, steps, time.Since(start))
	logger.Info("Branching episode finished", "episode", id, "steps", steps, "status", res.Status)
	return res, nil
}
