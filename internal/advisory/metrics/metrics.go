// Package metrics provides observability for the advisory module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for credit advisory scoring.
type Metrics struct {
	// Completed runs by overall rating and recommendation
	Completions *prometheus.CounterVec

	// Runs that ended in Failed
	Failures prometheus.Counter

	// Rejected operations by error code
	Rejections *prometheus.CounterVec

	// Distribution of overall scores at completion
	OverallScores prometheus.Histogram
}

// New creates a Metrics instance with all advisory metrics registered.
func New() *Metrics {
	return &Metrics{
		Completions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_advisory_completions_total",
			Help: "Total completed scoring runs by rating and recommendation",
		}, []string{"rating", "recommendation"}),

		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanflow_advisory_failures_total",
			Help: "Total scoring runs that ended in a failed state",
		}),

		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_advisory_rejections_total",
			Help: "Total rejected advisory operations by error code",
		}, []string{"code"}),

		OverallScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanflow_advisory_overall_score",
			Help:    "Overall scores at completion",
			Buckets: []float64{10, 20, 35, 50, 65, 80, 90, 100},
		}),
	}
}

// IncCompletion records one completed run.
func (m *Metrics) IncCompletion(rating, recommendation string) {
	if m != nil {
		m.Completions.WithLabelValues(rating, recommendation).Inc()
	}
}

// IncFailure records one failed run.
func (m *Metrics) IncFailure() {
	if m != nil {
		m.Failures.Inc()
	}
}

// IncRejection records a rejected operation.
func (m *Metrics) IncRejection(code string) {
	if m != nil {
		m.Rejections.WithLabelValues(code).Inc()
	}
}

// ObserveOverallScore records the overall score of a completed run.
func (m *Metrics) ObserveOverallScore(score float64) {
	if m != nil {
		m.OverallScores.Observe(score)
	}
}
