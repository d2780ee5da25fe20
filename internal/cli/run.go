package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/stepbnb"
	"github.com/aretw0/stepbnb/internal/config"
	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/internal/presentation/graph"
	"github.com/aretw0/stepbnb/pkg/adapters/knapsack"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/observability"
	"github.com/aretw0/stepbnb/pkg/observation"
	"github.com/aretw0/stepbnb/pkg/ports"
)

// RunOptions configures a batch of episodes driven by a built-in policy.
type RunOptions struct {
	Config   *config.Config
	Policy   Policy
	Episodes int
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Traces   ports.TraceStore
}

// Result summarizes one finished episode.
type Result struct {
	Episode   string
	Steps     int
	Nodes     int
	Status    domain.Status
	Objective float64
	Elapsed   time.Duration
	// Chosen lists the nodes the policy selected, in order.
	Chosen []domain.NodeID
	Tree   []domain.TreeNode
}

// EngineFactory loads the configured instance once and builds a fresh engine per episode.
func EngineFactory(cfg *config.Config, logger *slog.Logger) (stepbnb.Factory, error) {
	inst, err := cfg.LoadInstance()
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}
	opts := cfg.EngineOptions(logger)
	return func(context.Context) (ports.Engine, error) {
		e, err := knapsack.NewWithInstance(inst, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	}, nil
}

func envOptions(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, traces ports.TraceStore) ([]stepbnb.Option, error) {
	nodesel, err := cfg.Nodesel()
	if err != nil {
		return nil, err
	}
	opts := []stepbnb.Option{
		stepbnb.WithLogger(logger),
		stepbnb.WithNodeselParams(nodesel),
		stepbnb.WithMetrics(metrics),
	}
	if traces != nil {
		opts = append(opts, stepbnb.WithTraceStore(traces))
	}
	return opts, nil
}

// Run plays opts.Episodes episodes on the configured instance.
func Run(ctx context.Context, opts RunOptions) ([]Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	factory, err := EngineFactory(opts.Config, logger)
	if err != nil {
		return nil, err
	}
	envOpts, err := envOptions(opts.Config, logger, opts.Metrics, opts.Traces)
	if err != nil {
		return nil, err
	}

	env := stepbnb.New[struct{}](factory, observation.None{}, envOpts...)
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warn("Failed to close environment", "err", err)
		}
	}()

	results := make([]Result, 0, opts.Episodes)
	for range opts.Episodes {
		start := time.Now()
		tr, err := env.Reset(ctx)
		if err != nil {
			return results, err
		}
		var chosen []domain.NodeID
		steps := 0
		for !tr.Done {
			choice := opts.Policy(tr.ActionSet)
			if choice != nil {
				chosen = append(chosen, *choice)
			}
			tr, err = env.Step(ctx, choice)
			if err != nil {
				return results, fmt.Errorf("episode %s step %d: %w", env.EpisodeID(), steps, err)
			}
			steps++
		}
		res := summarize(env.EpisodeID(), env.Session().Engine(), steps, time.Since(start))
		res.Chosen = chosen
		logger.Info("Episode finished", "episode", res.Episode, "steps", res.Steps, "status", res.Status)
		results = append(results, res)
	}
	return results, nil
}

func summarize(id string, engine ports.Engine, steps int, elapsed time.Duration) Result {
	res := Result{Episode: id, Steps: steps, Status: engine.Status(), Elapsed: elapsed}
	if k, ok := engine.(*knapsack.Engine); ok {
		res.Objective, _ = k.Incumbent()
		res.Nodes = k.NodesProcessed()
	}
	if tv, ok := engine.(ports.TreeViewer); ok {
		res.Tree = tv.Tree()
	}
	return res
}

// Graph renders the search tree of r as a Mermaid flowchart, highlighting
// the nodes the policy chose.
func Graph(r Result) string {
	var overlay *graph.Overlay
	if n := len(r.Chosen); n > 0 {
		overlay = &graph.Overlay{Visited: r.Chosen[:n-1], Current: r.Chosen[n-1]}
	}
	return graph.GenerateMermaid(r.Tree, overlay)
}

// Summary renders results as a markdown table.
func Summary(results []Result) string {
	var b strings.Builder
	b.WriteString("# Episodes\n\n")
	b.WriteString("| # | episode | steps | nodes | status | objective | time |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for i, r := range results {
		fmt.Fprintf(&b, "| %d | `%s` | %d | %d | %s | %g | %s |\n",
			i+1, shortID(r.Episode), r.Steps, r.Nodes, r.Status, r.Objective, r.Elapsed.Round(time.Microsecond))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
