package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepbnb/internal/config"
	"github.com/aretw0/stepbnb/pkg/adapters/memory"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/dynamics"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Instance.Seed = 3
	cfg.Instance.Items = 10
	return cfg
}

func TestRun_PoliciesAgreeOnOptimum(t *testing.T) {
	ctx := context.Background()
	traces := memory.NewStore()

	depth, err := Run(ctx, RunOptions{Config: smallConfig(), Policy: DepthFirst, Episodes: 2, Traces: traces})
	require.NoError(t, err)
	require.Len(t, depth, 2)
	breadth, err := Run(ctx, RunOptions{Config: smallConfig(), Policy: BreadthFirst, Episodes: 1})
	require.NoError(t, err)
	require.Len(t, breadth, 1)

	for _, r := range append(depth, breadth...) {
		assert.Equal(t, domain.StatusOptimal, r.Status)
		assert.Equal(t, depth[0].Objective, r.Objective)
		assert.Positive(t, r.Nodes)
	}
	assert.NotEqual(t, depth[0].Episode, depth[1].Episode)

	ids, err := traces.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{depth[0].Episode, depth[1].Episode}, ids)

	summary := Summary(depth)
	assert.Contains(t, summary, "| 2 |")
	assert.Contains(t, summary, "optimal")
}

func TestRun_Decline(t *testing.T) {
	decline, err := ParsePolicy("decline", 0)
	require.NoError(t, err)

	res, err := Run(context.Background(), RunOptions{Config: smallConfig(), Policy: decline, Episodes: 1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, domain.StatusUnknown, res[0].Status)
	assert.Equal(t, 1, res[0].Steps)
}

func TestGraph(t *testing.T) {
	res, err := Run(context.Background(), RunOptions{Config: smallConfig(), Policy: DepthFirst, Episodes: 1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	r := res[0]
	require.NotEmpty(t, r.Tree)
	assert.Len(t, r.Chosen, r.Steps)

	out := Graph(r)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, fmt.Sprintf("class n%d current;", r.Chosen[len(r.Chosen)-1]))
	assert.NotContains(t, out, " open ")
}

func TestBranch_AgreesWithNodeSelection(t *testing.T) {
	ctx := context.Background()
	ref, err := Run(ctx, RunOptions{Config: smallConfig(), Policy: BreadthFirst, Episodes: 1})
	require.NoError(t, err)

	for _, name := range VariablePolicies {
		policy, err := ParseVariablePolicy(name)
		require.NoError(t, err)
		res, err := Branch(ctx, BranchOptions{Config: smallConfig(), Policy: policy})
		require.NoError(t, err, name)
		assert.Equal(t, domain.StatusOptimal, res.Status, name)
		assert.InDelta(t, ref[0].Objective, res.Objective, 1e-9, name)
		assert.NotEmpty(t, res.Episode)
	}
}

func TestBranch_RejectsBadParams(t *testing.T) {
	cfg := smallConfig()
	cfg.Callbacks = map[string]map[string]any{"branchrule": {"no_such_param": 1}}
	_, err := Branch(context.Background(), BranchOptions{Config: cfg, Policy: func([]int) *int { return nil }})
	assert.Error(t, err)
}

func TestPrimal_AgreesWithNodeSelection(t *testing.T) {
	ctx := context.Background()
	ref, err := Run(ctx, RunOptions{Config: smallConfig(), Policy: BreadthFirst, Episodes: 1})
	require.NoError(t, err)

	for _, name := range SolutionPolicies {
		policy, err := ParseSolutionPolicy(name)
		require.NoError(t, err)
		res, err := Primal(ctx, PrimalOptions{Config: smallConfig(), Policy: policy})
		require.NoError(t, err, name)
		assert.Equal(t, domain.StatusOptimal, res.Status, name)
		assert.InDelta(t, ref[0].Objective, res.Objective, 1e-9, name)
	}
}

func TestPrimal_UsesHeuristicParams(t *testing.T) {
	cfg := smallConfig()
	cfg.Callbacks = map[string]map[string]any{"heuristic": {"frequency": -1}}
	res, err := Primal(context.Background(), PrimalOptions{Config: cfg, Policy: func(dynamics.HeuristicPause) []int {
		t.Fatal("a disabled heuristic is never called")
		return nil
	}})
	require.NoError(t, err)
	assert.Zero(t, res.Steps)
	assert.Equal(t, domain.StatusOptimal, res.Status)

	cfg.Callbacks = map[string]map[string]any{"heuristic": {"no_such_param": 1}}
	_, err = Primal(context.Background(), PrimalOptions{Config: cfg, Policy: roundDown})
	assert.Error(t, err)
}

func TestRun_BadInstance(t *testing.T) {
	cfg := smallConfig()
	cfg.Instance.Path = "does-not-exist.yaml"
	_, err := Run(context.Background(), RunOptions{Config: cfg, Policy: DepthFirst, Episodes: 1})
	assert.Error(t, err)
}

func TestPlay_EnterAlwaysDives(t *testing.T) {
	var out bytes.Buffer
	res, err := Play(context.Background(), PlayOptions{
		Config:  smallConfig(),
		In:      strings.NewReader(strings.Repeat("\n", 10000)),
		Out:     &out,
		Profile: termenv.Ascii,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, res.Status)
	assert.Contains(t, out.String(), "leaves")
	assert.Contains(t, out.String(), "processed node")
}

func TestPlay_RejectsThenDeclines(t *testing.T) {
	var out bytes.Buffer
	res, err := Play(context.Background(), PlayOptions{
		Config:  smallConfig(),
		In:      strings.NewReader("abc\n999999\nn\n"),
		Out:     &out,
		Profile: termenv.Ascii,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `not a node id: "abc"`)
	assert.Contains(t, out.String(), "node 999999 is not open")
	assert.Equal(t, domain.StatusUnknown, res.Status)
	assert.Equal(t, 1, res.Steps)
}

func TestPlay_QuitEarly(t *testing.T) {
	var out bytes.Buffer
	res, err := Play(context.Background(), PlayOptions{
		Config:  smallConfig(),
		In:      strings.NewReader("q\n"),
		Out:     &out,
		Profile: termenv.Ascii,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Steps)
}
