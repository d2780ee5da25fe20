package observability_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/observability"
)

func TestMetrics_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.ObservePause(domain.KindNodesel)
	m.ObservePause(domain.KindNodesel)
	m.ObservePause(domain.KindBranchrule)
	m.ObserveRun("ok")
	m.ObserveDecision(3 * time.Millisecond)
	m.ObserveCopy(nil)
	m.ObserveCopy(errors.New("busy"))
	m.ObserveActionSet(domain.ActionSet{Leaves: []domain.NodeID{1, 2}})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	series := map[string]int{}
	for _, f := range families {
		names = append(names, f.GetName())
		series[f.GetName()] = len(f.GetMetric())
	}
	assert.ElementsMatch(t, []string{
		"stepbnb_pauses_total",
		"stepbnb_runs_total",
		"stepbnb_decision_seconds",
		"stepbnb_engine_copies_total",
		"stepbnb_action_set_size",
	}, names)

	assert.Equal(t, 2, series["stepbnb_pauses_total"], "one series per kind")
	assert.Equal(t, 2, series["stepbnb_engine_copies_total"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.ObservePause(domain.KindHeuristic)
		m.ObserveRun("error")
		m.ObserveDecision(time.Second)
		m.ObserveCopy(nil)
		m.ObserveActionSet(domain.ActionSet{})
	})
}
