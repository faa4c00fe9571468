package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the transfer guard. All
// recording methods are nil-safe so the guard can run without a
// collector registered (tests, embedded use).
type Metrics struct {
	// Guarded transfers by governance variant and outcome
	transfers *prometheus.CounterVec

	// Rejections by failure reason
	denials *prometheus.CounterVec

	// Collected royalty fees in native base units
	feesCollected prometheus.Counter

	// Reconcile latency
	reconcileDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with Prometheus collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		transfers: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_guard_transfers_total",
				Help: "Total number of guarded transfers processed",
			},
			[]string{"variant", "result"},
		),

		denials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_guard_denials_total",
				Help: "Total number of transfers rejected by the guard",
			},
			[]string{"reason"},
		),

		feesCollected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_guard_fees_collected_units_total",
				Help: "Total royalty fees collected in native base units",
			},
		),

		reconcileDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ganymede_guard_reconcile_duration_seconds",
				Help:    "Duration of post-transfer reconciliation in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordTransfer records a guarded transfer outcome.
func (m *Metrics) RecordTransfer(variant string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	m.transfers.WithLabelValues(variant, result).Inc()
}

// RecordDenial records a rejection by reason.
func (m *Metrics) RecordDenial(reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(reason).Inc()
}

// RecordFee records a collected fee amount.
func (m *Metrics) RecordFee(amount uint64) {
	if m == nil {
		return
	}
	m.feesCollected.Add(float64(amount))
}

// RecordReconcileDuration records the duration of a reconcile pass.
func (m *Metrics) RecordReconcileDuration(seconds float64) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(seconds)
}
