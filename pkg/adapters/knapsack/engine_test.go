package knapsack_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stepbnb/pkg/adapters/knapsack"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type selectFunc func(ctx context.Context, slot *domain.SelectionSlot) error

func (f selectFunc) Select(ctx context.Context, slot *domain.SelectionSlot) error { return f(ctx, slot) }
func (f selectFunc) Compare(_, _ domain.OpenNode) int { return 0 }

type branchFunc func(ctx context.Context, where domain.BranchWhere) (domain.Result, error)

func (f branchFunc) ExecLP(ctx context.Context, _ bool) (domain.Result, error) {
	return f(ctx, domain.WhereLP)
}
func (f branchFunc) ExecExternal(ctx context.Context, _ bool) (domain.Result, error) {
	return f(ctx, domain.WhereExternal)
}
func (f branchFunc) ExecPseudo(ctx context.Context, _ bool) (domain.Result, error) {
	return f(ctx, domain.WherePseudo)
}

type heurFunc func(ctx context.Context, timing domain.HeurTiming, infeasible bool) (domain.Result, error)

func (f heurFunc) Exec(ctx context.Context, timing domain.HeurTiming, infeasible bool) (domain.Result, error) {
	return f(ctx, timing, infeasible)
}

// bruteForce enumerates every subset.
func bruteForce(in *knapsack.Instance) float64 {
	best := 0.0
	n := len(in.Items)
	for mask := 0; mask < 1<<n; mask++ {
		w, v := 0.0, 0.0
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				w += in.Items[i].Weight
				v += in.Items[i].Value
			}
		}
		if w <= in.Capacity && v > best {
			best = v
		}
	}
	return best
}

func integralRoot() *knapsack.Instance {
	return &knapsack.Instance{
		Name:     "integral-root",
		Capacity: 10,
		Items:    []knapsack.Item{{Value: 10, Weight: 5}, {Value: 6, Weight: 5}, {Value: 1, Weight: 5}},
	}
}

// fractionalRoot needs branching: the root LP takes item 1 fractionally.
func fractionalRoot() *knapsack.Instance {
	return &knapsack.Instance{
		Name:     "fractional-root",
		Capacity: 10,
		Items:    []knapsack.Item{{Value: 10, Weight: 6}, {Value: 6, Weight: 5}, {Value: 5, Weight: 5}},
	}
}

func TestEngine_SolvesToOptimality(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		in := knapsack.Generate(seed, 12)
		e, err := knapsack.NewWithInstance(in)
		require.NoError(t, err)

		require.NoError(t, e.Solve(context.Background()))
		assert.Equal(t, domain.StageSolved, e.Stage())
		assert.Equal(t, domain.StatusOptimal, e.Status())

		value, _ := e.Incumbent()
		assert.InDelta(t, bruteForce(in), value, 1e-6, "seed %d", seed)
	}
}

func TestEngine_PresolveSolvesTrivialInstance(t *testing.T) {
	in := &knapsack.Instance{Capacity: 100, Items: []knapsack.Item{{Value: 3, Weight: 10}, {Value: 4, Weight: 20}, {Value: 9, Weight: 500}}}
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)

	calls := 0
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(context.Context, *domain.SelectionSlot) error {
		calls++
		return nil
	})))

	require.NoError(t, e.Solve(context.Background()))
	assert.Zero(t, calls, "no node selection when presolve solves the problem")
	assert.Equal(t, domain.StageSolved, e.Stage())
	value, items := e.Incumbent()
	assert.Equal(t, 7.0, value)
	assert.Equal(t, []int{0, 1}, items)
}

func TestEngine_SingleLeafRoot(t *testing.T) {
	e, err := knapsack.NewWithInstance(integralRoot())
	require.NoError(t, err)

	var seen []domain.OpenNodes
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(_ context.Context, slot *domain.SelectionSlot) error {
		open, err := e.OpenNodes()
		if err != nil {
			return err
		}
		seen = append(seen, open)
		return slot.Set(open.Leaves[0].Handle)
	})))

	require.NoError(t, e.Solve(context.Background()))
	require.Len(t, seen, 1)
	require.Len(t, seen[0].Leaves, 1)
	assert.Equal(t, domain.NodeID(1), seen[0].Leaves[0].ID)
	assert.Empty(t, seen[0].Children)
	assert.Empty(t, seen[0].Siblings)

	value, _ := e.Incumbent()
	assert.Equal(t, 16.0, value)
	assert.Equal(t, domain.StatusOptimal, e.Status())
}

func TestEngine_OpenNodeClassification(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(7, 10))
	require.NoError(t, err)

	ids := map[domain.NodeID]bool{}
	pauses := 0
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(_ context.Context, slot *domain.SelectionSlot) error {
		open, err := e.OpenNodes()
		if err != nil {
			return err
		}
		pauses++
		require.Equal(t, e.NodesLeft(), open.Len())
		focus, ok := e.FocusNode()
		for _, c := range open.Children {
			require.True(t, ok, "children imply a focus node")
			require.Greater(t, c.ID, focus.Number)
		}
		for _, n := range append(append(open.Leaves, open.Children...), open.Siblings...) {
			ids[n.ID] = true
		}
		if len(open.Children) > 0 {
			return slot.Set(open.Children[0].Handle)
		}
		if len(open.Siblings) > 0 {
			return slot.Set(open.Siblings[0].Handle)
		}
		return slot.Set(open.Leaves[0].Handle)
	})))

	require.NoError(t, e.Solve(context.Background()))
	assert.Greater(t, pauses, 1)
	assert.Equal(t, domain.StatusOptimal, e.Status())
	for id := range ids {
		assert.Positive(t, int64(id))
	}
}

func TestEngine_DeclinedSelectionEndsSearch(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(3, 10))
	require.NoError(t, err)
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(context.Context, *domain.SelectionSlot) error {
		return nil
	})))

	require.NoError(t, e.Solve(context.Background()))
	assert.Equal(t, domain.StageSolved, e.Stage())
	assert.Equal(t, domain.StatusUnknown, e.Status())
	assert.Zero(t, e.NodesProcessed())
}

func TestEngine_InvalidSelection(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(3, 10))
	require.NoError(t, err)
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(_ context.Context, slot *domain.SelectionSlot) error {
		return slot.Set(99)
	})))

	err = e.Solve(context.Background())
	assert.ErrorIs(t, err, knapsack.ErrInvalidNode)
}

func TestEngine_InterruptAndResume(t *testing.T) {
	in := knapsack.Generate(11, 14)
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)

	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(_ context.Context, slot *domain.SelectionSlot) error {
		return e.Interrupt()
	})))
	require.NoError(t, e.Solve(context.Background()))
	assert.Equal(t, domain.StageSolving, e.Stage())
	assert.Equal(t, domain.StatusUserInterrupt, e.Status())
	left := e.NodesLeft()
	assert.Equal(t, 1, left)

	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(_ context.Context, slot *domain.SelectionSlot) error {
		open, err := e.OpenNodes()
		if err != nil {
			return err
		}
		all := append(append(open.Children, open.Siblings...), open.Leaves...)
		return slot.Set(all[0].Handle)
	})))
	require.NoError(t, e.Solve(context.Background()))
	assert.Equal(t, domain.StatusOptimal, e.Status())
	value, _ := e.Incumbent()
	assert.InDelta(t, bruteForce(in), value, 1e-6)
}

func TestEngine_InterruptInsideExtensionKeepsNode(t *testing.T) {
	for _, tc := range []struct {
		name    string
		include func(e *knapsack.Engine) error
	}{
		{
			name: "Heuristic Before Node",
			include: func(e *knapsack.Engine) error {
				params := domain.DefaultHeuristic()
				params.TimingMask = domain.TimingBeforeNode
				return e.IncludeHeuristic(params, heurFunc(func(context.Context, domain.HeurTiming, bool) (domain.Result, error) {
					return domain.DidNotRun, e.Interrupt()
				}))
			},
		},
		{
			name: "Heuristic After LP Node",
			include: func(e *knapsack.Engine) error {
				return e.IncludeHeuristic(domain.DefaultHeuristic(), heurFunc(func(context.Context, domain.HeurTiming, bool) (domain.Result, error) {
					return domain.DidNotRun, e.Interrupt()
				}))
			},
		},
		{
			name: "Branchrule",
			include: func(e *knapsack.Engine) error {
				return e.IncludeBranchrule(domain.DefaultBranchrule(), branchFunc(func(context.Context, domain.BranchWhere) (domain.Result, error) {
					return domain.DidNotRun, e.Interrupt()
				}))
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := fractionalRoot()
			e, err := knapsack.NewWithInstance(in)
			require.NoError(t, err)
			require.NoError(t, tc.include(e))

			require.NoError(t, e.Solve(context.Background()))
			require.Equal(t, domain.StatusUserInterrupt, e.Status())
			assert.Equal(t, 1, e.NodesLeft(), "the interrupted root is open again")
			assert.Zero(t, e.NodesProcessed())

			require.NoError(t, e.IncludeBranchrule(domain.DefaultBranchrule(), nil))
			require.NoError(t, e.IncludeHeuristic(domain.DefaultHeuristic(), nil))
			require.NoError(t, e.Solve(context.Background()))
			assert.Equal(t, domain.StatusOptimal, e.Status())
			value, _ := e.Incumbent()
			assert.InDelta(t, bruteForce(in), value, 1e-6)
		})
	}
}

func TestEngine_NilExtensionRestoresDefault(t *testing.T) {
	in := knapsack.Generate(3, 10)
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)

	calls := 0
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), selectFunc(func(context.Context, *domain.SelectionSlot) error {
		calls++
		return nil
	})))
	require.NoError(t, e.IncludeNodeSelector(domain.DefaultNodesel(), nil))

	require.NoError(t, e.Solve(context.Background()))
	assert.Zero(t, calls)
	assert.Equal(t, domain.StatusOptimal, e.Status())
	value, _ := e.Incumbent()
	assert.InDelta(t, bruteForce(in), value, 1e-6)
}

func TestEngine_ContextCancelInterrupts(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(5, 12))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Solve(ctx))
	assert.Equal(t, domain.StatusUserInterrupt, e.Status())
}

func TestEngine_NodeLimit(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(9, 16), knapsack.WithNodeLimit(2))
	require.NoError(t, err)
	require.NoError(t, e.Solve(context.Background()))
	assert.LessOrEqual(t, e.NodesProcessed(), 2)
	if e.Status() != domain.StatusOptimal {
		assert.Equal(t, domain.StatusNodeLimit, e.Status())
	}
}

func TestEngine_Tree(t *testing.T) {
	e, err := knapsack.NewWithInstance(integralRoot())
	require.NoError(t, err)
	require.NoError(t, e.Solve(context.Background()))
	tree := e.Tree()
	require.Len(t, tree, 1)
	assert.Equal(t, domain.TreeNode{Number: 1, Bound: 16, Outcome: domain.OutcomeIntegral, Variable: -1}, tree[0])

	e, err = knapsack.NewWithInstance(knapsack.Generate(9, 16))
	require.NoError(t, err)
	require.NoError(t, e.Solve(context.Background()))
	tree = e.Tree()
	require.Greater(t, len(tree), 1)

	byNumber := map[domain.NodeID]domain.TreeNode{}
	for _, n := range tree {
		byNumber[n.Number] = n
	}
	for _, n := range tree[1:] {
		parent, ok := byNumber[n.Parent]
		require.True(t, ok, "node %d has an unknown parent", n.Number)
		assert.Equal(t, domain.OutcomeBranched, parent.Outcome)
		assert.Equal(t, parent.Depth+1, n.Depth)
		assert.GreaterOrEqual(t, n.Variable, 0)
		assert.NotEqual(t, domain.OutcomeOpen, n.Outcome)
	}
}

func TestEngine_TreeKeepsOpenNodes(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(9, 16), knapsack.WithNodeLimit(2))
	require.NoError(t, err)
	require.NoError(t, e.Solve(context.Background()))
	if e.Status() == domain.StatusOptimal {
		t.Skip("instance solved within the node limit")
	}

	open := 0
	for _, n := range e.Tree() {
		if n.Outcome == domain.OutcomeOpen {
			open++
		}
	}
	assert.Equal(t, e.NodesLeft(), open)
}

func TestEngine_ExternalBranching(t *testing.T) {
	in := knapsack.Generate(4, 10)
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)

	var wheres []domain.BranchWhere
	require.NoError(t, e.IncludeBranchrule(domain.DefaultBranchrule(), branchFunc(func(_ context.Context, where domain.BranchWhere) (domain.Result, error) {
		wheres = append(wheres, where)
		cands, err := e.BranchCandidates()
		if err != nil {
			return domain.DidNotRun, err
		}
		if len(cands) == 0 {
			return domain.DidNotRun, nil
		}
		if err := e.Branch(cands[0]); err != nil {
			return domain.DidNotRun, err
		}
		return domain.Branched, nil
	})))

	require.NoError(t, e.Solve(context.Background()))
	assert.NotEmpty(t, wheres)
	for _, w := range wheres {
		assert.Equal(t, domain.WhereLP, w)
	}
	value, _ := e.Incumbent()
	assert.InDelta(t, bruteForce(in), value, 1e-6)
}

func TestEngine_PseudoBranching(t *testing.T) {
	in := knapsack.Generate(4, 8)
	e, err := knapsack.NewWithInstance(in, knapsack.WithoutLP())
	require.NoError(t, err)

	calls := 0
	require.NoError(t, e.IncludeBranchrule(domain.DefaultBranchrule(), branchFunc(func(_ context.Context, where domain.BranchWhere) (domain.Result, error) {
		calls++
		assert.Equal(t, domain.WherePseudo, where)
		cands, err := e.BranchCandidates()
		if err != nil {
			return domain.DidNotRun, err
		}
		assert.NotEmpty(t, cands)
		// Leave the choice to the built-in rule.
		return domain.DidNotRun, nil
	})))

	require.NoError(t, e.Solve(context.Background()))
	assert.Positive(t, calls)
	value, _ := e.Incumbent()
	assert.InDelta(t, bruteForce(in), value, 1e-6)
}

func TestEngine_BranchedWithoutChildrenFails(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(4, 10))
	require.NoError(t, err)
	require.NoError(t, e.IncludeBranchrule(domain.DefaultBranchrule(), branchFunc(func(context.Context, domain.BranchWhere) (domain.Result, error) {
		return domain.Branched, nil
	})))
	assert.Error(t, e.Solve(context.Background()))
}

func TestEngine_BranchOutsideCallback(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(4, 10))
	require.NoError(t, err)
	assert.ErrorIs(t, e.Branch(0), knapsack.ErrNotBranching)
	_, err = e.BranchCandidates()
	assert.ErrorIs(t, err, knapsack.ErrNotBranching)
}

func TestEngine_HeuristicTimings(t *testing.T) {
	in := knapsack.Generate(6, 10)
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)

	params := domain.DefaultHeuristic()
	params.TimingMask = domain.TimingBeforePresol | domain.TimingBeforeNode | domain.TimingAfterLPNode
	timings := map[domain.HeurTiming]int{}
	require.NoError(t, e.IncludeHeuristic(params, heurFunc(func(_ context.Context, timing domain.HeurTiming, _ bool) (domain.Result, error) {
		timings[timing]++
		if timing == domain.TimingBeforePresol {
			// The empty knapsack is always feasible and never improves.
			ok, err := e.AddSolution(nil)
			assert.False(t, ok)
			return domain.DidNotFind, err
		}
		return domain.DidNotRun, nil
	})))

	require.NoError(t, e.Solve(context.Background()))
	assert.Equal(t, 1, timings[domain.TimingBeforePresol])
	assert.Positive(t, timings[domain.TimingBeforeNode])
	assert.Zero(t, timings[domain.TimingAfterPseudoNode])
}

func TestEngine_AddSolution(t *testing.T) {
	e, err := knapsack.NewWithInstance(integralRoot())
	require.NoError(t, err)

	ok, err := e.AddSolution([]int{0, 2})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.AddSolution([]int{0, 1, 2})
	require.NoError(t, err)
	assert.False(t, ok, "overweight")

	_, err = e.AddSolution([]int{5})
	assert.Error(t, err)

	value, items := e.Incumbent()
	assert.Equal(t, 11.0, value)
	assert.Equal(t, []int{0, 2}, items)
}

func TestEngine_Inspector(t *testing.T) {
	e, err := knapsack.NewWithInstance(integralRoot())
	require.NoError(t, err)

	_, ok := e.FocusNode()
	assert.False(t, ok, "no focus before solving")

	cols := e.LPColumns()
	require.Len(t, cols, 3)
	assert.Equal(t, []float64{5}, cols[1].Values)
	assert.Equal(t, []float64{10}, cols[1].RowRHS)
}

func TestEngine_CopyRebuildsProblem(t *testing.T) {
	in := knapsack.Generate(2, 8)
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)
	require.NoError(t, e.Solve(context.Background()))

	dup, err := e.Copy()
	require.NoError(t, err)
	assert.Equal(t, domain.StageProblem, dup.Stage())
	require.NoError(t, dup.Solve(context.Background()))
	a, _ := e.Incumbent()
	b, _ := dup.(*knapsack.Engine).Incumbent()
	assert.Equal(t, a, b)

	empty, err := knapsack.New().Copy()
	require.NoError(t, err)
	assert.Equal(t, domain.StageInit, empty.Stage())
}

func TestEngine_ConcurrentCopyCollides(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(2, 8), knapsack.WithCopyDelay(100*time.Millisecond))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Copy()
		}(i)
	}
	wg.Wait()

	collisions := 0
	for _, err := range errs {
		if errors.Is(err, knapsack.ErrConcurrentCopy) {
			collisions++
		}
	}
	assert.Equal(t, 1, collisions)
}

func TestEngine_Free(t *testing.T) {
	e, err := knapsack.NewWithInstance(integralRoot())
	require.NoError(t, err)
	require.NoError(t, e.Free())

	assert.Equal(t, domain.StageFreed, e.Stage())
	assert.ErrorIs(t, e.Solve(context.Background()), domain.ErrEngineFreed)
	_, err = e.Copy()
	assert.ErrorIs(t, err, domain.ErrEngineFreed)
	_, err = e.OpenNodes()
	assert.ErrorIs(t, err, domain.ErrEngineFreed)
}

func TestEngine_SolveWithoutProblem(t *testing.T) {
	assert.ErrorIs(t, knapsack.New().Solve(context.Background()), knapsack.ErrNoProblem)
}

func TestLoadInstance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: small
capacity: 10
items:
  - {value: 10, weight: 5}
  - {value: 6, weight: 5}
  - {value: 1, weight: 5}
`), 0o644))

	in, err := knapsack.LoadInstance(path)
	require.NoError(t, err)
	assert.Equal(t, "small", in.Name)
	assert.Len(t, in.Items, 3)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("capacity: 5\nitems:\n  - {value: 1, weight: 0}\n"), 0o644))
	_, err = knapsack.LoadInstance(bad)
	assert.Error(t, err)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := knapsack.Generate(42, 20)
	b := knapsack.Generate(42, 20)
	assert.Equal(t, a, b)
	assert.Len(t, a.Items, 20)

	total := 0.0
	for _, it := range a.Items {
		total += it.Weight
	}
	assert.Equal(t, math.Floor(total/2), a.Capacity)
}
