package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the questionnaire flow module.
type Metrics struct {
	Steps               *prometheus.CounterVec
	StepDuration        prometheus.Histogram
	TruncatedAnswers    prometheus.Counter
	SubmissionsStarted  prometheus.Counter
	SubmissionsFinished prometheus.Counter
}

// New creates a new Metrics instance with all flow metrics registered.
func New() *Metrics {
	return &Metrics{
		Steps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garita_flow_steps_total",
			Help: "Total flow steps by outcome",
		}, []string{"outcome"}),
		StepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "garita_flow_step_duration_seconds",
			Help:    "Duration of flow steps including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TruncatedAnswers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garita_flow_truncated_answers_total",
			Help: "Total answers deleted by downstream truncation",
		}),
		SubmissionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garita_submissions_started_total",
			Help: "Total submissions created",
		}),
		SubmissionsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garita_submissions_finalized_total",
			Help: "Total submissions finalized",
		}),
	}
}

// IncrementStep records one step by outcome ("ok" or "error").
func (m *Metrics) IncrementStep(outcome string) {
	m.Steps.WithLabelValues(outcome).Inc()
}

// ObserveStep records the duration of a step.
// Call with time.Now() at the start of the step.
func (m *Metrics) ObserveStep(start time.Time) {
	m.StepDuration.Observe(time.Since(start).Seconds())
}

// AddTruncated records answers removed by one truncation.
func (m *Metrics) AddTruncated(n int) {
	m.TruncatedAnswers.Add(float64(n))
}
