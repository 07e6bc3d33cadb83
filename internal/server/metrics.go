// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and the retrieval engine, and exposes helpers used by handlers and
// middleware.
package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the "handler" label value used to partition metrics by the
// logical endpoint name rather than the raw URL path.
const labelHandler = "handler"

// Metrics holds all Prometheus metrics owned by the service. A single
// instance is created per process and registered against an explicit
// registry so that tests stay hermetic. Metrics also satisfies
// rag.MetricsSink, feeding engine-level cache and latency data into the same
// registry the HTTP layer scrapes.
type Metrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// askRequestsTotal counts completed /api/ask requests, partitioned by
	// outcome: "ok" or "invalid".
	askRequestsTotal *prometheus.CounterVec

	// engineOpsTotal counts engine operations, partitioned by op
	// ("retrieve", "generate") and cache result ("hit", "miss").
	engineOpsTotal *prometheus.CounterVec

	// engineOpDurationSeconds records engine operation latency by op.
	engineOpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the full metric set against reg and returns it.
// promauto.With(reg) is used so that each call registers into the provided
// registry rather than the global default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "polai",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polai",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		engineOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polai",
			Subsystem: "engine",
			Name:      "ops_total",
			Help:      "Total number of engine operations, partitioned by op and cache result.",
		}, []string{"op", "cache"}),

		engineOpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "polai",
			Subsystem: "engine",
			Name:      "op_duration_seconds",
			Help:      "Latency of engine operations, partitioned by op.",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30},
		}, []string{"op"}),
	}
}

// Observe implements rag.MetricsSink.
func (m *Metrics) Observe(op string, elapsed time.Duration, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.engineOpsTotal.WithLabelValues(op, cache).Inc()
	m.engineOpDurationSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}
