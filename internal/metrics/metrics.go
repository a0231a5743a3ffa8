// Package metrics exposes Prometheus instrumentation for the schema
// generation pipeline: attempts, retries, security rejections, and
// generation latency, mounted at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schemaforge"

// Metrics holds every counter, histogram, and gauge this module emits.
// Unlike the teacher's package-level DefaultMetrics singleton, this is
// constructed with an explicit prometheus.Registerer so tests can pass
// prometheus.NewRegistry() and construct as many independent Metrics
// instances as they like without tripping promauto's duplicate-
// registration panic.
type Metrics struct {
	AttemptsTotal             *prometheus.CounterVec
	RetriesTotal              prometheus.Counter
	SecurityRejectionsTotal   *prometheus.CounterVec
	GenerationDurationSeconds *prometheus.HistogramVec
	ValidationFailuresTotal   prometheus.Counter
	ActiveSessions            prometheus.Gauge
}

// New registers every metric against reg and returns the bound instance.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total schema generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		RetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total retry-triggered attempts beyond the first in a session",
			},
		),
		SecurityRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "security_rejections_total",
				Help:      "Total candidate schemas rejected by the security layer, by reason",
			},
			[]string{"reason"},
		),
		GenerationDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Time spent in a single Engine.Generate call, by backend",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"backend"},
		),
		ValidationFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total candidate schemas rejected by Draft-07 validation",
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of generate sessions currently in flight",
			},
		),
	}
}

// RecordAttempt records one attempt's terminal outcome.
func (m *Metrics) RecordAttempt(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry records that a session needed another attempt.
func (m *Metrics) RecordRetry() {
	m.RetriesTotal.Inc()
}

// RecordSecurityRejection records a rejection from execguard or jsonsafe.
func (m *Metrics) RecordSecurityRejection(reason string) {
	m.SecurityRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordValidationFailure records a Draft-07 validation rejection.
func (m *Metrics) RecordValidationFailure() {
	m.ValidationFailuresTotal.Inc()
}

// RecordGenerationDuration records one Engine.Generate call's latency.
func (m *Metrics) RecordGenerationDuration(backend string, seconds float64) {
	m.GenerationDurationSeconds.WithLabelValues(backend).Observe(seconds)
}

// SessionStarted and SessionEnded track concurrently active sessions.
func (m *Metrics) SessionStarted() { m.ActiveSessions.Inc() }
func (m *Metrics) SessionEnded()   { m.ActiveSessions.Dec() }

// Handler returns the HTTP handler to mount at /metrics, scraping
// whatever registry New was given.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
