package reverse_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/aretw0/stepbnb/internal/coroutine"
	"github.com/aretw0/stepbnb/internal/reverse"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a minimal engine that only keeps what was registered with it.
type recorder struct {
	ports.Engine
	branchrule ports.Branchrule
	heuristic  ports.Heuristic
	nodesel    ports.NodeSelector
	interrupts int
}

func (r *recorder) IncludeBranchrule(_ domain.BranchruleConstructor, b ports.Branchrule) error {
	r.branchrule = b
	return nil
}

func (r *recorder) IncludeHeuristic(_ domain.HeuristicConstructor, h ports.Heuristic) error {
	r.heuristic = h
	return nil
}

func (r *recorder) IncludeNodeSelector(_ domain.NodeselConstructor, n ports.NodeSelector) error {
	r.nodesel = n
	return nil
}

func (r *recorder) Interrupt() error {
	r.interrupts++
	return nil
}

type controller = coroutine.Controller[domain.Call, domain.Result]

// run starts fn on a worker after registering every adapter with eng.
func run(t *testing.T, eng *recorder, fn func(ctx context.Context) error) (*controller, domain.Call, bool, error) {
	t.Helper()
	c := coroutine.New[domain.Call, domain.Result]()
	call, finished, err := c.Start(context.Background(), func(ctx context.Context, ref reverse.Ref) error {
		if err := reverse.Include(eng, ref, domain.DefaultBranchrule(), domain.DefaultHeuristic(), domain.DefaultNodesel()); err != nil {
			return err
		}
		return fn(ctx)
	})
	return c, call, finished, err
}

func TestInclude_RegistersEveryKind(t *testing.T) {
	eng := &recorder{}
	c, _, finished, err := run(t, eng, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, finished)
	require.NoError(t, c.Close())

	assert.IsType(t, &reverse.Branchrule{}, eng.branchrule)
	assert.IsType(t, &reverse.Heuristic{}, eng.heuristic)
	assert.IsType(t, &reverse.NodeSelector{}, eng.nodesel)
}

func TestInclude_RemovesKindsNotRequested(t *testing.T) {
	eng := &recorder{}
	c, _, _, err := run(t, eng, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NotNil(t, eng.nodesel)

	c = coroutine.New[domain.Call, domain.Result]()
	_, finished, err := c.Start(context.Background(), func(_ context.Context, ref reverse.Ref) error {
		return reverse.Include(eng, ref, domain.DefaultHeuristic())
	})
	require.NoError(t, err)
	require.True(t, finished)
	require.NoError(t, c.Close())

	assert.Nil(t, eng.branchrule)
	assert.Nil(t, eng.nodesel)
	assert.IsType(t, &reverse.Heuristic{}, eng.heuristic)
}

func TestBranchrule_ForwardsCallAndResult(t *testing.T) {
	eng := &recorder{}
	var got domain.Result
	c, call, finished, err := run(t, eng, func(ctx context.Context) error {
		var err error
		got, err = eng.branchrule.ExecPseudo(ctx, false)
		return err
	})
	require.NoError(t, err)
	require.False(t, finished)
	assert.Equal(t, domain.BranchruleCall{AllowAddConstraints: false, Where: domain.WherePseudo}, call)

	_, finished, err = c.Resume(context.Background(), domain.Branched)
	require.NoError(t, err)
	require.True(t, finished)
	assert.Equal(t, domain.Branched, got)
	require.NoError(t, c.Close())
}

func TestBranchrule_RejectsInvalidResult(t *testing.T) {
	eng := &recorder{}
	c, _, _, err := run(t, eng, func(ctx context.Context) error {
		_, err := eng.branchrule.ExecExternal(ctx, true)
		return err
	})
	require.NoError(t, err)

	_, finished, err := c.Resume(context.Background(), domain.Separated)
	assert.True(t, finished)
	assert.ErrorIs(t, err, domain.ErrInvalidResult)
	require.NoError(t, c.Close())
}

func TestBranchResultAllowed(t *testing.T) {
	lp := domain.BranchruleCall{Where: domain.WhereLP}
	lpCons := domain.BranchruleCall{Where: domain.WhereLP, AllowAddConstraints: true}
	pseudo := domain.BranchruleCall{Where: domain.WherePseudo, AllowAddConstraints: true}

	assert.True(t, reverse.BranchResultAllowed(lp, domain.Separated))
	assert.False(t, reverse.BranchResultAllowed(pseudo, domain.Separated))
	assert.False(t, reverse.BranchResultAllowed(lp, domain.ConsAdded))
	assert.True(t, reverse.BranchResultAllowed(lpCons, domain.ConsAdded))
	assert.True(t, reverse.BranchResultAllowed(pseudo, domain.ReducedDom))
	assert.False(t, reverse.BranchResultAllowed(lp, domain.Found))
	assert.False(t, reverse.BranchResultAllowed(lp, domain.Success))
}

func TestHeuristic_ValidatesResult(t *testing.T) {
	for _, tc := range []struct {
		result domain.Result
		valid  bool
	}{
		{domain.Found, true},
		{domain.DidNotFind, true},
		{domain.DidNotRun, true},
		{domain.Branched, false},
		{domain.Success, false},
	} {
		t.Run(tc.result.String(), func(t *testing.T) {
			eng := &recorder{}
			c, call, _, err := run(t, eng, func(ctx context.Context) error {
				_, err := eng.heuristic.Exec(ctx, domain.TimingAfterLPNode, true)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, domain.HeuristicCall{Timing: domain.TimingAfterLPNode, NodeInfeasible: true}, call)

			_, _, err = c.Resume(context.Background(), tc.result)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidResult)
			}
			require.NoError(t, c.Close())
		})
	}
}

func TestNodeSelector_SlotTravelsWithCall(t *testing.T) {
	eng := &recorder{}
	var slot domain.SelectionSlot
	require.NoError(t, slot.Set(42))

	c, call, _, err := run(t, eng, func(ctx context.Context) error {
		return eng.nodesel.Select(ctx, &slot)
	})
	require.NoError(t, err)

	ns, ok := call.(domain.NodeselCall)
	require.True(t, ok)
	_, set := ns.Slot.Selected()
	assert.False(t, set, "slot is cleared before the call is posted")
	require.NoError(t, ns.Slot.Set(7))

	_, finished, err := c.Resume(context.Background(), domain.Success)
	require.NoError(t, err)
	require.True(t, finished)
	require.NoError(t, c.Close())

	h, set := slot.Selected()
	assert.True(t, set)
	assert.Equal(t, domain.NodeHandle(7), h)
}

func TestNodeSelector_InvalidResultClearsSlot(t *testing.T) {
	eng := &recorder{}
	var slot domain.SelectionSlot
	c, call, _, err := run(t, eng, func(ctx context.Context) error {
		return eng.nodesel.Select(ctx, &slot)
	})
	require.NoError(t, err)
	require.NoError(t, call.(domain.NodeselCall).Slot.Set(3))

	_, _, err = c.Resume(context.Background(), domain.Found)
	assert.ErrorIs(t, err, domain.ErrInvalidResult)
	require.NoError(t, c.Close())
	_, set := slot.Selected()
	assert.False(t, set)
}

func TestStopTokenInterruptsEngine(t *testing.T) {
	eng := &recorder{}
	var results []domain.Result
	var slot domain.SelectionSlot
	c, _, _, err := run(t, eng, func(ctx context.Context) error {
		if err := eng.nodesel.Select(ctx, &slot); err != nil {
			return err
		}
		// The engine unwinds and may still fire callbacks.
		r, err := eng.heuristic.Exec(ctx, domain.TimingBeforeNode, false)
		results = append(results, r)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.Equal(t, []domain.Result{domain.DidNotRun}, results)
	assert.Equal(t, 2, eng.interrupts)
	_, set := slot.Selected()
	assert.False(t, set)
}

func TestCollectedExecutorDidNotRun(t *testing.T) {
	eng := &recorder{}
	var ref reverse.Ref
	func() {
		c := coroutine.New[domain.Call, domain.Result]()
		_, finished, err := c.Start(context.Background(), func(_ context.Context, r reverse.Ref) error {
			ref = r
			return reverse.Include(eng, r, domain.DefaultBranchrule(), domain.DefaultNodesel())
		})
		require.NoError(t, err)
		require.True(t, finished)
		require.NoError(t, c.Close())
	}()

	// The adapters outlive the run that registered them.
	for i := 0; i < 10 && ref.Value() != nil; i++ {
		runtime.GC()
	}
	require.Nil(t, ref.Value())

	r, err := eng.branchrule.ExecLP(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.DidNotRun, r)

	var slot domain.SelectionSlot
	require.NoError(t, eng.nodesel.Select(context.Background(), &slot))
	_, set := slot.Selected()
	assert.False(t, set)
	assert.Zero(t, eng.interrupts)
}

func TestCanceledContextInterrupts(t *testing.T) {
	eng := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got domain.Result
	c := coroutine.New[domain.Call, domain.Result]()
	_, finished, err := c.Start(context.Background(), func(_ context.Context, ref reverse.Ref) error {
		if err := reverse.Include(eng, ref, domain.DefaultHeuristic()); err != nil {
			return err
		}
		r, err := eng.heuristic.Exec(ctx, domain.TimingBeforeNode, false)
		got = r
		return err
	})
	require.NoError(t, err)
	require.True(t, finished, "no pause is posted under a canceled context")
	require.NoError(t, c.Close())
	assert.Equal(t, domain.DidNotRun, got)
	assert.Equal(t, 1, eng.interrupts)
}
