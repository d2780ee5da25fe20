package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"github.com/aretw0/stepbnb"
	"github.com/aretw0/stepbnb/internal/config"
	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/internal/presentation/tui"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/observation"
	"github.com/aretw0/stepbnb/pkg/ports"
)

var errQuit = errors.New("quit")

// PlayOptions configures an interactive episode.
type PlayOptions struct {
	Config  *config.Config
	Logger  *slog.Logger
	Traces  ports.TraceStore
	In      io.Reader
	Out     io.Writer
	Profile termenv.Profile
}

// Play runs one episode where every node selection is typed by the user.
// Quitting or closing the input ends the episode early without error.
func Play(ctx context.Context, opts PlayOptions) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	factory, err := EngineFactory(opts.Config, logger)
	if err != nil {
		return Result{}, err
	}
	envOpts, err := envOptions(opts.Config, logger, nil, opts.Traces)
	if err != nil {
		return Result{}, err
	}

	env := stepbnb.New[domain.FocusNodeInfo](factory, observation.FocusNode{}, envOpts...)
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warn("Failed to close environment", "err", err)
		}
	}()

	start := time.Now()
	tr, err := env.Reset(ctx)
	if err != nil {
		return Result{}, err
	}

	in := bufio.NewScanner(opts.In)
	steps := 0
	for !tr.Done {
		if tr.HasObservation {
			o := tr.Observation
			fmt.Fprintf(opts.Out, "\nprocessed node %d (depth %d, bound %.2f), %d open\n", o.Number, o.Depth, o.Bound, tr.ActionSet.Len())
		}
		fmt.Fprint(opts.Out, tui.FormatActionSet(tr.ActionSet, opts.Profile))

		choice, err := readChoice(in, opts.Out, opts.Profile, tr.ActionSet)
		if err != nil {
			res := summarize(env.EpisodeID(), env.Session().Engine(), steps, time.Since(start))
			return res, handleExecutionError(err)
		}
		tr, err = env.Step(ctx, choice)
		if err != nil {
			return Result{}, err
		}
		steps++
	}
	return summarize(env.EpisodeID(), env.Session().Engine(), steps, time.Since(start)), nil
}

// readChoice prompts until the line names an open node, is empty (first node),
// or declines.
func readChoice(in *bufio.Scanner, out io.Writer, profile termenv.Profile, set domain.ActionSet) (*domain.NodeID, error) {
	for {
		fmt.Fprint(out, tui.Prompt(profile))
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return nil, err
			}
			return nil, errQuit
		}
		line := strings.TrimSpace(in.Text())
		switch strings.ToLower(line) {
		case "":
			return DepthFirst(set), nil
		case "n", "none":
			return nil, nil
		case "q", "quit", "exit":
			return nil, errQuit
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			fmt.Fprintf(out, "not a node id: %q\n", line)
			continue
		}
		id := domain.NodeID(n)
		if !set.Contains(id) {
			fmt.Fprintf(out, "node %d is not open\n", id)
			continue
		}
		return &id, nil
	}
}
