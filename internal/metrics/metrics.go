// Package metrics exposes Prometheus instrumentation for the index: how
// often each operation runs and with what outcome, how long sorts and
// sweeps take, and the current size of the Device Store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flightindex"

// Metrics bundles every counter, gauge, and histogram the index emits.
// Construct one per process with NewMetrics and share it across Index
// instances.
type Metrics struct {
	operations   *prometheus.CounterVec
	sweepSeconds prometheus.Histogram
	sortSeconds  prometheus.Histogram
	storeGrowths prometheus.Counter

	liveCount      prometheus.Gauge
	storeCapacity  prometheus.Gauge
}

// NewMetrics registers and returns a fresh Metrics instance against the
// given registerer (pass prometheus.DefaultRegisterer in production code,
// a fresh prometheus.NewRegistry() in tests to avoid collisions).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Count of index operations by name and outcome.",
		}, []string{"operation", "outcome"}),

		sweepSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of Sweep Query calls.",
			Buckets:   prometheus.DefBuckets,
		}),

		sortSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sort_duration_seconds",
			Help:      "Duration of Sort Engine re-sorts.",
			Buckets:   prometheus.DefBuckets,
		}),

		storeGrowths: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_growths_total",
			Help:      "Count of Device Store capacity doublings.",
		}),

		liveCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_flights",
			Help:      "Current number of live flights in the Device Store.",
		}),

		storeCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_capacity",
			Help:      "Current allocated capacity of the Device Store's flight array.",
		}),
	}
}

// ObserveOperation records one call to a public operation and its outcome
// ("success" or "failure").
func (m *Metrics) ObserveOperation(operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveSweep records a Sweep Query's wall-clock duration in seconds.
func (m *Metrics) ObserveSweep(seconds float64) {
	m.sweepSeconds.Observe(seconds)
}

// ObserveSort records a Sort Engine re-sort's wall-clock duration in seconds.
func (m *Metrics) ObserveSort(seconds float64) {
	m.sortSeconds.Observe(seconds)
}

// RecordGrowth increments the store-growth counter.
func (m *Metrics) RecordGrowth() {
	m.storeGrowths.Inc()
}

// SetLiveCount publishes the current live flight count.
func (m *Metrics) SetLiveCount(n int) {
	m.liveCount.Set(float64(n))
}

// SetStoreCapacity publishes the current allocated flight-array capacity.
func (m *Metrics) SetStoreCapacity(n int) {
	m.storeCapacity.Set(float64(n))
}
