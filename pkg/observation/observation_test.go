package observation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepbnb/pkg/adapters/knapsack"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/dynamics"
	"github.com/aretw0/stepbnb/pkg/observation"
	"github.com/aretw0/stepbnb/pkg/ports"
	"github.com/aretw0/stepbnb/pkg/session"
)

func pausedSession(t *testing.T) (*session.Session, *dynamics.NodeSelection) {
	t.Helper()
	in := &knapsack.Instance{
		Capacity: 12,
		Items:    []knapsack.Item{{Value: 8, Weight: 4}, {Value: 9, Weight: 6}, {Value: 5, Weight: 5}, {Value: 2, Weight: 3}},
	}
	e, err := knapsack.NewWithInstance(in)
	require.NoError(t, err)
	s := session.New(e)
	t.Cleanup(func() { _ = s.Close() })

	d := dynamics.NewNodeSelection()
	done, _, err := d.Reset(context.Background(), s)
	require.NoError(t, err)
	require.False(t, done)
	return s, d
}

func TestObservations_OutsideSolving(t *testing.T) {
	e, err := knapsack.NewWithInstance(knapsack.Generate(1, 5))
	require.NoError(t, err)

	_, ok := observation.FocusNode{}.Extract(e, false)
	assert.False(t, ok)
	_, ok = observation.Capacity{}.Extract(e, false)
	assert.False(t, ok)
	_, ok = observation.Weight{}.Extract(e, false)
	assert.False(t, ok)
}

func TestObservations_WhilePaused(t *testing.T) {
	s, d := pausedSession(t)

	weights, ok := observation.Weight{}.Extract(s.Engine(), false)
	require.True(t, ok)
	assert.Equal(t, []float64{4, 6, 5, 3}, weights)

	caps, ok := observation.Capacity{}.Extract(s.Engine(), false)
	require.True(t, ok)
	assert.Equal(t, []float64{12, 12, 12, 12}, caps)

	// Before the root is processed there is no focus node.
	_, ok = observation.FocusNode{}.Extract(s.Engine(), false)
	assert.False(t, ok)

	root := domain.NodeID(1)
	done, _, err := d.Step(context.Background(), s, &root)
	require.NoError(t, err)
	require.False(t, done)

	focus, ok := observation.FocusNode{}.Extract(s.Engine(), false)
	require.True(t, ok)
	assert.Equal(t, root, focus.Number)
	assert.Equal(t, 0, focus.Depth)
	assert.Equal(t, domain.NodeID(-1), focus.ParentNumber)
	assert.Equal(t, 4, focus.Variables)
	assert.Equal(t, 1, focus.LPCandidates)
}

func TestObservations_WithoutInspector(t *testing.T) {
	s, _ := pausedSession(t)
	hidden := struct{ ports.Engine }{s.Engine()}

	_, ok := observation.Weight{}.Extract(hidden, false)
	assert.False(t, ok)
	_, ok = observation.FocusNode{}.Extract(hidden, false)
	assert.False(t, ok)

	_, ok = observation.None{}.Extract(hidden, true)
	assert.True(t, ok)
}
