// File: internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the bridge relay
type Metrics struct {
	EventsProcessedTotal  *prometheus.CounterVec
	DispatchFailuresTotal prometheus.Counter
	InvalidEventsTotal    prometheus.Counter
	DuplicatesSkipped     prometheus.Counter

	CheckpointBlock prometheus.Gauge
	BlocksBehind    prometheus.Gauge
	RangesScanned   prometheus.Counter
	CycleDuration   prometheus.Histogram

	ConnectionErrorsTotal *prometheus.CounterVec
	DriverState           *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics. Must be called at
// most once per process; collectors register against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_relay_events_processed_total",
				Help: "Total number of bridge events processed",
			},
			[]string{"status"},
		),
		DispatchFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_relay_dispatch_failures_total",
				Help: "Total number of failed actuator dispatches",
			},
		),
		InvalidEventsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_relay_invalid_events_total",
				Help: "Total number of events rejected by validation",
			},
		),
		DuplicatesSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_relay_duplicates_skipped_total",
				Help: "Total number of already-processed events skipped",
			},
		),
		CheckpointBlock: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_relay_checkpoint_block",
				Help: "Highest fully reconciled block number",
			},
		),
		BlocksBehind: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_relay_blocks_behind",
				Help: "Distance between the checkpoint and the latest confirmed block",
			},
		),
		RangesScanned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_relay_ranges_scanned_total",
				Help: "Total number of block ranges scanned",
			},
		),
		CycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bridge_relay_cycle_duration_seconds",
				Help:    "Duration of a full scan/fetch/process/commit cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		ConnectionErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_relay_connection_errors_total",
				Help: "Total number of source chain connection errors",
			},
			[]string{"error_type"},
		),
		DriverState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_relay_driver_state",
				Help: "Current poll loop driver state (1 for active state, 0 otherwise)",
			},
			[]string{"state"},
		),
	}
}

// RecordCycle records the duration of a completed poll cycle.
func (m *Metrics) RecordCycle(d time.Duration) {
	m.CycleDuration.Observe(d.Seconds())
}

// SetDriverState marks the given state active and all others inactive.
func (m *Metrics) SetDriverState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.DriverState.WithLabelValues(s).Set(v)
	}
}
