// Package metrics holds the pipeline's Prometheus instruments. Every method
// is safe on a nil *Metrics so domain code can run without a registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	IssuesCreated         *prometheus.CounterVec
	Transitions           *prometheus.CounterVec
	ScoreEvents           *prometheus.CounterVec
	LedgerInconsistencies prometheus.Counter
	CollaboratorDuration  *prometheus.HistogramVec
	BacklogPenalties      prometheus.Counter
	Requests              *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssuesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issues_created_total",
			Help: "Issues created, by resolver match type",
		}, []string{"match_type"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issue_transitions_total",
			Help: "Committed issue status transitions",
		}, []string{"from", "to"}),
		ScoreEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_score_events_total",
			Help: "Score events appended to the ledger, by reason",
		}, []string{"reason"}),
		LedgerInconsistencies: f.NewCounter(prometheus.CounterOpts{
			Name: "civic_ledger_inconsistencies_total",
			Help: "Reconciliations where the stored score diverged from base plus event sum",
		}),
		CollaboratorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civic_collaborator_duration_seconds",
			Help:    "Latency of external collaborator calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collaborator", "outcome"}),
		BacklogPenalties: f.NewCounter(prometheus.CounterOpts{
			Name: "civic_backlog_penalties_total",
			Help: "Stale backlog penalties posted",
		}),
		Requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civic_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

func (m *Metrics) IssueCreated(matchType string) {
	if m == nil {
		return
	}
	m.IssuesCreated.WithLabelValues(matchType).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ScoreEvent(reason string) {
	if m == nil {
		return
	}
	m.ScoreEvents.WithLabelValues(reason).Inc()
}

func (m *Metrics) LedgerInconsistency() {
	if m == nil {
		return
	}
	m.LedgerInconsistencies.Inc()
}

func (m *Metrics) BacklogPenalty() {
	if m == nil {
		return
	}
	m.BacklogPenalties.Inc()
}

// ObserveCollaborator records a call started at start. Call with the call's error.
func (m *Metrics) ObserveCollaborator(name string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CollaboratorDuration.WithLabelValues(name, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
