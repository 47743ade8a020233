package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Consistency metrics
	SideEffectFailuresTotal *prometheus.CounterVec
	SagaStepsJournaledTotal *prometheus.CounterVec
	ReconciledStepsTotal    *prometheus.CounterVec
	ProgressRecomputations  *prometheus.CounterVec

	// Authorization metrics
	AuthorizationDecisions *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "learner_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SideEffectFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_side_effect_failures_total",
				Help: "Failed non-fatal steps of multi-store operations",
			},
			[]string{"operation", "step"},
		),
		SagaStepsJournaledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_saga_steps_journaled_total",
				Help: "Failed steps written to the saga journal",
			},
			[]string{"saga", "step"},
		),
		ReconciledStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_reconciled_steps_total",
				Help: "Journaled steps retried by the reconciler",
			},
			[]string{"step", "result"},
		),
		ProgressRecomputations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_progress_recomputations_total",
				Help: "Enrollment progress recomputations",
			},
			[]string{"result"},
		),
		AuthorizationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learner_authorization_decisions_total",
				Help: "Role checks by operation and outcome",
			},
			[]string{"operation", "decision"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.SideEffectFailuresTotal,
			m.SagaStepsJournaledTotal,
			m.ReconciledStepsTotal,
			m.ProgressRecomputations,
			m.AuthorizationDecisions,
		)
	}

	return m
}

// NewNopMetrics returns unregistered collectors, handy for tests
func NewNopMetrics() *Metrics {
	return NewMetrics(nil)
}

func (m *Metrics) SideEffectFailed(operation, step string) {
	m.SideEffectFailuresTotal.WithLabelValues(operation, step).Inc()
}

func (m *Metrics) StepJournaled(saga, step string) {
	m.SagaStepsJournaledTotal.WithLabelValues(saga, step).Inc()
}

func (m *Metrics) StepReconciled(step, result string) {
	m.ReconciledStepsTotal.WithLabelValues(step, result).Inc()
}

func (m *Metrics) ProgressRecomputed(result string) {
	m.ProgressRecomputations.WithLabelValues(result).Inc()
}

func (m *Metrics) AuthorizationDecided(operation, decision string) {
	m.AuthorizationDecisions.WithLabelValues(operation, decision).Inc()
}
