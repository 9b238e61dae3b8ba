// Package metrics holds the Prometheus instruments for stage invocations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"docpipe/internal/errs"
)

// Invocation outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomePermanent = "permanent"
	OutcomeError     = "error"
)

// StageMetrics counts and times stage invocations.
type StageMetrics struct {
	Invocations *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewStageMetrics creates the stage instruments and registers them with reg.
func NewStageMetrics(reg prometheus.Registerer) *StageMetrics {
	factory := promauto.With(reg)
	return &StageMetrics{
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "stage",
			Name:      "invocations_total",
			Help:      "Total number of stage invocations by outcome.",
		}, []string{"stage", "outcome"}), // outcome: success, permanent, error
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Stage invocation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
	}
}

// Observe records one invocation of stage that started at start and ended
// with err.
func (m *StageMetrics) Observe(stage string, start time.Time, err error) {
	m.Invocations.WithLabelValues(stage, Outcome(err)).Inc()
	m.Duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Outcome maps a handler result to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errs.IsPermanent(err):
		return OutcomePermanent
	default:
		return OutcomeError
	}
}
