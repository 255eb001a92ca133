// Package metrics holds the Prometheus collectors for obligation loading.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Year outcomes recorded by IncYearOutcome.
const (
	OutcomeOK                 = "ok"
	OutcomeError              = "error"
	OutcomePaymentUnavailable = "payment_unavailable"
)

// Metrics provides observability for the obligation aggregator and the
// tax-records client.
type Metrics struct {
	// Upstream fetch latency by operation ("list", "detail", "payment") and result
	FetchLatency *prometheus.HistogramVec

	// Per-year population outcomes
	YearOutcome *prometheus.CounterVec

	// Sessions by final state ("settled", "failed", "cancelled")
	SessionsFinished *prometheus.CounterVec

	// Sessions currently populating
	SessionsInFlight prometheus.Gauge

	// Tax-records cache lookups by result ("hit", "miss")
	CacheLookups *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pbb_taxrecords_fetch_duration_seconds",
			Help:    "Duration of tax-records service calls by operation and result",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "result"}),

		YearOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbb_obligation_year_outcomes_total",
			Help: "Tax years populated by outcome",
		}, []string{"outcome"}),

		SessionsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbb_obligation_sessions_total",
			Help: "Obligation sessions by final state",
		}, []string{"state"}),

		SessionsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "pbb_obligation_sessions_in_flight",
			Help: "Obligation sessions still populating tax years",
		}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pbb_taxrecords_cache_lookups_total",
			Help: "Tax-records cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveFetch records the duration of one upstream call.
func (m *Metrics) ObserveFetch(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchLatency.WithLabelValues(operation, result).Observe(d.Seconds())
}

// IncYearOutcome records how one tax year settled.
func (m *Metrics) IncYearOutcome(outcome string) {
	if m != nil {
		m.YearOutcome.WithLabelValues(outcome).Inc()
	}
}

// SessionStarted marks a session as populating.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.SessionsInFlight.Inc()
	}
}

// SessionFinished records the final state of a session that was populating.
func (m *Metrics) SessionFinished(state string) {
	if m != nil {
		m.SessionsInFlight.Dec()
		m.SessionsFinished.WithLabelValues(state).Inc()
	}
}

// SessionFailed records a session that never got past listing years.
func (m *Metrics) SessionFailed() {
	if m != nil {
		m.SessionsFinished.WithLabelValues("failed").Inc()
	}
}

// IncCacheLookup records a cache hit or miss.
func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
