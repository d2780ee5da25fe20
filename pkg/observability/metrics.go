package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aretw0/stepbnb/pkg/domain"
)

const namespace = "stepbnb"

// Metrics groups the collectors updated by sessions and decision loops.
type Metrics struct {
	pauses    *prometheus.CounterVec
	runs      *prometheus.CounterVec
	decisions prometheus.Histogram
	copies    *prometheus.CounterVec
	actions   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pauses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_total",
			Help:      "Engine pauses handed to the controller, by callback kind.",
		}, []string{"kind"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs, by outcome.",
		}, []string{"outcome"}),
		decisions: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_seconds",
			Help:      "Time between a pause being exposed and the controller answering it.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		copies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_copies_total",
			Help:      "Session duplications, by result.",
		}, []string{"result"}),
		actions: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_set_size",
			Help:      "Number of admissible node ids offered per decision.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// ObservePause counts a pause of the given kind.
func (m *Metrics) ObservePause(kind domain.CallKind) {
	if m == nil {
		return
	}
	m.pauses.WithLabelValues(kind.String()).Inc()
}

// ObserveRun counts a finished run. Outcome is "ok", "error" or "stopped".
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveDecision records how long the controller took to answer a pause.
func (m *Metrics) ObserveDecision(d time.Duration) {
	if m == nil {
		return
	}
	m.decisions.Observe(d.Seconds())
}

// ObserveCopy counts a duplication attempt.
func (m *Metrics) ObserveCopy(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.copies.WithLabelValues(result).Inc()
}

// ObserveActionSet records the size of an action set.
func (m *Metrics) ObserveActionSet(set domain.ActionSet) {
	if m == nil {
		return
	}
	m.actions.Observe(float64(set.Len()))
}
