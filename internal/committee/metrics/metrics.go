// Package metrics provides observability for the committee module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for committee voting.
type Metrics struct {
	// Votes cast by position
	Votes *prometheus.CounterVec

	// Rejected operations by failure code
	Failures *prometheus.CounterVec

	// Recorded decisions by outcome
	Decisions *prometheus.CounterVec

	// Reviews closed by the deadline expirer
	Expirations prometheus.Counter
}

// New creates a Metrics instance with all committee metrics registered.
func New() *Metrics {
	return &Metrics{
		Votes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_committee_votes_total",
			Help: "Total committee votes cast by position",
		}, []string{"vote"}),

		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_committee_failures_total",
			Help: "Total rejected committee operations by error code",
		}, []string{"code"}),

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanflow_committee_decisions_total",
			Help: "Total recorded committee decisions by outcome",
		}, []string{"decision"}),

		Expirations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanflow_committee_expirations_total",
			Help: "Total reviews expired past their deadline",
		}),
	}
}

// IncVote records one cast vote.
func (m *Metrics) IncVote(vote string) {
	if m != nil {
		m.Votes.WithLabelValues(vote).Inc()
	}
}

// IncFailure records a rejected operation.
func (m *Metrics) IncFailure(code string) {
	if m != nil {
		m.Failures.WithLabelValues(code).Inc()
	}
}

// IncDecision records one final decision.
func (m *Metrics) IncDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

// IncExpiration records one expired review.
func (m *Metrics) IncExpiration() {
	if m != nil {
		m.Expirations.Inc()
	}
}
