// Package metrics registers and exposes the prometheus collectors used by the
// HTTP layer and the AI client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. Constructed once and shared through the
// application wiring; no package-level state.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	RateLimitDenials *prometheus.CounterVec
	CacheOps         *prometheus.CounterVec
	AICalls          *prometheus.CounterVec
	AICallDuration   prometheus.Histogram
}

// New builds and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		RateLimitDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_denials_total",
			Help: "Requests denied by the rate limiter, by call class.",
		}, []string{"class"}),
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations by outcome (hit, miss, error).",
		}, []string{"outcome"}),
		AICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "Calls to the AI provider by outcome.",
		}, []string{"outcome"}),
		AICallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ai_call_duration_seconds",
			Help:    "AI provider call latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.RateLimitDenials,
		m.CacheOps,
		m.AICalls,
		m.AICallDuration,
	)
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
