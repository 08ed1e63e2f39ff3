package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors recording (endpoint, method,
// status) for every SCIM request.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics builds and registers this server's collectors against the
// default Prometheus registry. When a Server built earlier in the same
// process already registered them, those collectors are reused.
func NewMetrics() *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scimd_http_requests_total",
				Help: "Total number of SCIM HTTP requests.",
			},
			[]string{"endpoint", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scimd_http_request_duration_seconds",
				Help:    "Histogram of SCIM HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method", "status"},
		),
	}
	if err := prometheus.Register(m.requestsTotal); err != nil {
		m.requestsTotal = err.(prometheus.AlreadyRegisteredError).ExistingCollector.(*prometheus.CounterVec)
	}
	if err := prometheus.Register(m.requestDuration); err != nil {
		m.requestDuration = err.(prometheus.AlreadyRegisteredError).ExistingCollector.(*prometheus.HistogramVec)
	}
	return m
}

// Observe records one completed request.
func (m *Metrics) Observe(endpoint, method string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(endpoint, method, code).Inc()
	m.requestDuration.WithLabelValues(endpoint, method, code).Observe(d.Seconds())
}

// Handler exposes the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
