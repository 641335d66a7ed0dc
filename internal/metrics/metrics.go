// Package metrics exposes Prometheus collectors for queries, model calls, and index reloads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry      *prometheus.Registry
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	UpstreamCalls *prometheus.CounterVec
	IndexReloads  *prometheus.CounterVec
	IndexedChunks prometheus.Gauge
	IndexBuilds   *prometheus.CounterVec
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kotae",
			Name:      "queries_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kotae",
			Name:      "query_duration_seconds",
			Help:      "End-to-end question latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kotae",
			Name:      "upstream_attempts_total",
			Help:      "Model invocation attempts, by model and result.",
		}, []string{"model", "result"}),
		IndexReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kotae",
			Name:      "index_reloads_total",
			Help:      "Index snapshot loads, by result.",
		}, []string{"result"}),
		IndexedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kotae",
			Name:      "indexed_chunks",
			Help:      "Vectors in the resident snapshot.",
		}),
		IndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kotae",
			Name:      "index_builds_total",
			Help:      "Index builds, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Queries, m.QueryDuration, m.UpstreamCalls, m.IndexReloads, m.IndexedChunks, m.IndexBuilds)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
