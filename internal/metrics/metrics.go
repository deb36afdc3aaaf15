// Package metrics provides a self-contained Prometheus registry with the
// gateway's HTTP request families and the KV operation families.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prn-tf/kvgate/internal/kv"
)

const namespace = "s3gw"

// latencyBuckets are the histogram bounds in milliseconds.
var latencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Metrics holds the gateway's Prometheus collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	requests      *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
	requestBytes  *prometheus.CounterVec
	responseBytes *prometheus.CounterVec
	inflight      prometheus.Gauge
	latency       *prometheus.HistogramVec

	kvOps     *prometheus.CounterVec
	kvErrors  *prometheus.CounterVec
	kvBytes   *prometheus.CounterVec
	kvLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with a fresh registry and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed, partitioned by method.",
	}, []string{"method"})
	requestErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_errors_total",
		Help:      "Total number of HTTP requests answered with status >= 400.",
	}, []string{"method"})
	requestBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_bytes_total",
		Help:      "Total request body bytes received.",
	}, []string{"method"})
	responseBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_bytes_total",
		Help:      "Total response body bytes written.",
	}, []string{"method"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inflight_requests",
		Help:      "Current number of inflight HTTP requests.",
	})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_latency_ms",
		Help:      "Histogram of HTTP request latencies in milliseconds.",
		Buckets:   latencyBuckets,
	}, []string{"method"})

	kvOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kv",
		Name:      "ops_total",
		Help:      "Total number of KV operations, partitioned by operation.",
	}, []string{"op"})
	kvErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kv",
		Name:      "errors_total",
		Help:      "Total number of failed KV operations.",
	}, []string{"op"})
	kvBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kv",
		Name:      "bytes_total",
		Help:      "Total key and value bytes moved through KV operations.",
	}, []string{"op"})
	kvLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kv",
		Name:      "latency_ms",
		Help:      "Histogram of KV operation latencies in milliseconds.",
		Buckets:   latencyBuckets,
	}, []string{"op"})

	_ = reg.Register(requests)
	_ = reg.Register(requestErrors)
	_ = reg.Register(requestBytes)
	_ = reg.Register(responseBytes)
	_ = reg.Register(inflight)
	_ = reg.Register(latency)
	_ = reg.Register(kvOps)
	_ = reg.Register(kvErrors)
	_ = reg.Register(kvBytes)
	_ = reg.Register(kvLatency)

	return &Metrics{
		reg:           reg,
		requests:      requests,
		requestErrors: requestErrors,
		requestBytes:  requestBytes,
		responseBytes: responseBytes,
		inflight:      inflight,
		latency:       latency,
		kvOps:         kvOps,
		kvErrors:      kvErrors,
		kvBytes:       kvBytes,
		kvLatency:     kvLatency,
	}
}

// Handler returns an http.Handler serving the exposition for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// normalizeMethod folds uncommon HTTP methods into "OTHER" so the method
// label stays bounded.
func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodHead:
		return method
	default:
		return "OTHER"
	}
}

// statusRecorder captures the status code and body bytes written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

// Middleware wraps next with the HTTP request families: request and error
// counters, request/response byte counters, the inflight gauge, and the
// latency histogram.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		method := normalizeMethod(r.Method)

		m.inflight.Inc()
		defer m.inflight.Dec()

		m.requests.WithLabelValues(method).Inc()
		if r.ContentLength > 0 {
			m.requestBytes.WithLabelValues(method).Add(float64(r.ContentLength))
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= 400 {
			m.requestErrors.WithLabelValues(method).Inc()
		}
		if rec.bytes > 0 {
			m.responseBytes.WithLabelValues(method).Add(float64(rec.bytes))
		}
		m.latency.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// ObserveOp records one KV operation. A nil err counts as success; misses
// arrive here as nil.
func (m *Metrics) ObserveOp(op string, bytes int, duration time.Duration, err error) {
	m.kvOps.WithLabelValues(op).Inc()
	if err != nil {
		m.kvErrors.WithLabelValues(op).Inc()
	}
	if bytes > 0 {
		m.kvBytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.kvLatency.WithLabelValues(op).Observe(float64(duration.Milliseconds()))
}

var _ kv.Observer = (*Metrics)(nil)
