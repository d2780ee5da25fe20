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

// SolutionPolicy proposes a solution at a heuristic pause.
// Nil reports that nothing was found.
type SolutionPolicy func(pause dynamics.HeuristicPause) []int

// SolutionPolicies lists the names accepted by ParseSolutionPolicy.
var SolutionPolicies = []string{"round-down", "none"}

// ParseSolutionPolicy returns the named built-in primal policy.
func ParseSolutionPolicy(name string) (SolutionPolicy, error) {
	switch name {
	case "round-down":
		return roundDown, nil
	case "none":
		return func(dynamics.HeuristicPause) []int { return nil }, nil
	}
	return nil, fmt.Errorf("unknown primal policy %q (want one of %v)", name, SolutionPolicies)
}

// roundDown keeps the variables the LP solution takes whole.
// Dropping the fractional ones never breaks a packing constraint.
func roundDown(pause dynamics.HeuristicPause) []int {
	if len(pause.LPSolution) == 0 {
		return nil
	}
	vars := []int{}
	for i, x := range pause.LPSolution {
		if x > 1-1e-9 {
			vars = append(vars, i)
		}
	}
	return vars
}

// PrimalOptions configures one primal search episode.
type PrimalOptions struct {
	Config  *config.Config
	Policy  SolutionPolicy
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Primal plays one episode in which the policy answers every heuristic call.
// Node selection and branching stay with the engine.
func Primal(ctx context.Context, opts PrimalOptions) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	params, err := opts.Config.Heuristic()
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
	loop := dynamics.NewPrimalSearch(
		dynamics.WithLogger(logger),
		dynamics.WithMetrics(opts.Metrics),
		dynamics.WithHeuristicParams(params),
	)

	id := uuid.NewString()
	start := time.Now()
	done, pause, err := loop.Reset(ctx, s)
	steps := 0
	for err == nil && !done {
		done, pause, err = loop.Step(ctx, s, opts.Policy(pause))
		steps++
	}
	if err != nil {
		return Result{}, fmt.Errorf("primal episode %s step %d: %w", id, steps, err)
	}

	res := summarize(id, engine, steps, time.Since(start))
	logger.Info("Primal episode finished", "episode", id, "steps", steps, "found", loop.Found(), "status", res.Status)
	return res, nil
}
