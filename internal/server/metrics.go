package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks dispatch outcomes per operation and error code.
type Metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the metric vectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsgate",
			Name:      "dispatches_total",
			Help:      "Dispatched operation requests by operation, status, and error code.",
		}, []string{"operation", "status", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opsgate",
			Name:      "dispatch_duration_seconds",
			Help:      "Operation dispatch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.dispatches, m.duration)
	return m
}

// Record captures one dispatch outcome.
func (m *Metrics) Record(op, status string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(op, status, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
