// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the API server.
type HTTPMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimitedTotal    *prometheus.CounterVec
	historyCacheTotal   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petmood_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: defaultLatencyBuckets,
		},
		[]string{"method", "route"},
	)

	m.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)

	m.historyCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_history_cache_total",
			Help: "History response cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.rateLimitedTotal.Describe(ch)
	m.historyCacheTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.rateLimitedTotal.Collect(ch)
	m.historyCacheTotal.Collect(ch)
}

// RecordHTTPRequest records one served request. route is the echo route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *HTTPMetrics) RecordHTTPRequest(method, route string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordRateLimited records a request rejected by the limiter.
func (m *HTTPMetrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordHistoryCache records a cache hit or miss.
func (m *HTTPMetrics) RecordHistoryCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.historyCacheTotal.WithLabelValues(result).Inc()
}
