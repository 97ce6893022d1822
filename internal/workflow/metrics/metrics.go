// Package metrics provides observability for the workflow module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow engine.
type Metrics struct {
	// Transitions by action and resulting status
	Transitions *prometheus.CounterVec

	// Rejected transitions by failure code
	TransitionFailures *prometheus.CounterVec

	// Full transition latency including store round-trips
	TransitionLatency prometheus.Histogram

	// SLA escalations raised by the sweeper
	Escalations prometheus.Counter
}

// New creates a Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_workflow_transitions_total",
			Help: "Total successful workflow transitions by action and target status",
		}, []string{"action", "to_status"}),

		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_workflow_transition_failures_total",
			Help: "Total rejected workflow transitions by error code",
		}, []string{"code"}),

		TransitionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanflow_workflow_transition_duration_seconds",
			Help:    "Duration of a transition including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		Escalations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanflow_workflow_sla_escalations_total",
			Help: "Total SLA escalations raised by the sweeper",
		}),
	}
}

// IncTransition records a successful transition.
func (m *Metrics) IncTransition(action, toStatus string) {
	if m != nil {
		m.Transitions.WithLabelValues(action, toStatus).Inc()
	}
}

// IncFailure records a rejected transition.
func (m *Metrics) IncFailure(code string) {
	if m != nil {
		m.TransitionFailures.WithLabelValues(code).Inc()
	}
}

// ObserveTransitionLatency records the duration of a full transition.
func (m *Metrics) ObserveTransitionLatency(d time.Duration) {
	if m != nil {
		m.TransitionLatency.Observe(d.Seconds())
	}
}

// IncEscalation records one SLA escalation.
func (m *Metrics) IncEscalation() {
	if m != nil {
		m.Escalations.Inc()
	}
}
