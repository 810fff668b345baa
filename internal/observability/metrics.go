// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes used as the "result" label.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds all Prometheus metrics for the watcher.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Watch loop metrics
	AttemptsTotal   prometheus.Counter
	AttemptFailures *prometheus.CounterVec
	WatchState      prometheus.Gauge

	// Pipeline metrics
	ReferencesReceived prometheus.Counter
	Resolutions        *prometheus.CounterVec
	ResolveLatency     prometheus.Histogram
	MatchesReported    prometheus.Counter
	LastMatchTimestamp prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wallet_watch"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "attempts_total",
			Help:      "Total number of connection attempts",
		}),
		AttemptFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "attempt_failures_total",
			Help:      "Total number of failed attempts by failing stage",
		}, []string{"stage"}),
		WatchState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "state",
			Help:      "Current watch loop state (0=idle 1=connecting 2=streaming 3=retrying 4=terminated)",
		}),

		ReferencesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "references_received_total",
			Help:      "Total number of pending transaction hashes received",
		}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "resolutions_total",
			Help:      "Total number of hash resolutions by result",
		}, []string{"result"}),
		ResolveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "resolve_latency_seconds",
			Help:      "Transaction resolution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		MatchesReported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "matches_reported_total",
			Help:      "Total number of transactions to the watched address reported",
		}),
		LastMatchTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_match_timestamp",
			Help:      "Unix timestamp of the last reported match",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// HandlerFor returns an HTTP handler for the /metrics endpoint backed by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordAttempt increments the attempts counter.
func (m *Metrics) RecordAttempt() {
	if m == nil {
		return
	}
	m.AttemptsTotal.Inc()
}

// RecordAttemptFailure records a failed attempt at stage.
func (m *Metrics) RecordAttemptFailure(stage string) {
	if m == nil {
		return
	}
	m.AttemptFailures.WithLabelValues(stage).Inc()
}

// SetState records the current watch state.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.WatchState.Set(float64(state))
}

// RecordReference increments the references received counter.
func (m *Metrics) RecordReference() {
	if m == nil {
		return
	}
	m.ReferencesReceived.Inc()
}

// RecordResolution records a resolution outcome and its latency.
func (m *Metrics) RecordResolution(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(result).Inc()
	m.ResolveLatency.Observe(elapsed.Seconds())
}

// RecordMatch records a reported match.
func (m *Metrics) RecordMatch(at time.Time) {
	if m == nil {
		return
	}
	m.MatchesReported.Inc()
	m.LastMatchTimestamp.Set(float64(at.Unix()))
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
