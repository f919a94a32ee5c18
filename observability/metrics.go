package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records operation counters and latency for the
// settlement core.
type SettlementMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	metricsOnce     sync.Once
	metricsRegistry *SettlementMetrics
)

// Metrics returns the lazily-initialised settlement metrics registry.
func Metrics() *SettlementMetrics {
	metricsOnce.Do(func() {
		metricsRegistry = &SettlementMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ipchain",
				Subsystem: "settlement",
				Name:      "operations_total",
				Help:      "Total settlement operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ipchain",
				Subsystem: "settlement",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for settlement operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			metricsRegistry.operations,
			metricsRegistry.latency,
		)
	})
	return metricsRegistry
}

// RecordOperation records one settlement operation outcome and its latency.
func (m *SettlementMetrics) RecordOperation(operation string, err error, started time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
