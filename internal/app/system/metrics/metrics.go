// Package metrics exposes Prometheus instruments for the form service and
// its HTTP surface. A nil *Metrics is valid and records nothing, so callers
// and tests never need to check for it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formhub"

type Metrics struct {
	reg *prometheus.Registry

	recordOps *prometheus.CounterVec
	exports   *prometheus.CounterVec
	bindings  prometheus.Gauge
	bindTime  prometheus.Histogram
	requests  *prometheus.HistogramVec
}

// New registers every instrument on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		recordOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_operations_total",
			Help:      "Record operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Record exports by format and outcome.",
		}, []string{"format", "outcome"}),
		bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_bindings",
			Help:      "Form versions currently bound to a physical collection.",
		}),
		bindTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_bind_seconds",
			Help:      "Time to allocate a collection and publish a binding.",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	m.reg.MustRegister(
		m.recordOps, m.exports, m.bindings, m.bindTime, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry (used by tests to gather).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// RecordOp counts one record operation ("create", "get", ...).
func (m *Metrics) RecordOp(op string, err error) {
	if m == nil {
		return
	}
	m.recordOps.WithLabelValues(op, outcome(err)).Inc()
}

// Export counts one export attempt.
func (m *Metrics) Export(format string, err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, outcome(err)).Inc()
}

// ObserveBind records a bind duration.
func (m *Metrics) ObserveBind(d time.Duration) {
	if m == nil {
		return
	}
	m.bindTime.Observe(d.Seconds())
}

// SetBindings sets the live binding gauge.
func (m *Metrics) SetBindings(n int) {
	if m == nil {
		return
	}
	m.bindings.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware times each request under its chi route pattern so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
