package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exposed by the query API.
type Metrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_queries_total",
				Help: "Total number of query requests by pipeline and status",
			},
			[]string{"pipeline", "status"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_query_duration_seconds",
				Help:    "Query handling latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
		registry: registry,
	}

	registry.MustRegister(m.queriesTotal, m.queryDuration)
	return m
}

// RecordQuery records one handled query.
func (m *Metrics) RecordQuery(pipeline string, status int, duration time.Duration) {
	m.queriesTotal.WithLabelValues(pipeline, strconv.Itoa(status)).Inc()
	m.queryDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
