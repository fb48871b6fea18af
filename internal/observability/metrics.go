package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics exported by ardash processes.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	invoiced       prometheus.Gauge
	outstanding    prometheus.Gauge
	overduePercent prometheus.Gauge
	lastScan       prometheus.Gauge
}

// NewMetrics initialises a registry with HTTP, runtime and receivables metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ardash_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ardash_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	invoiced := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ardash_receivables_invoiced_total",
		Help: "Sum of all invoice totals at the last overdue scan.",
	})
	outstanding := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ardash_receivables_outstanding_total",
		Help: "Sum of outstanding invoice balances at the last overdue scan.",
	})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ardash_receivables_overdue_percent",
		Help: "Share of invoices that were overdue at the last overdue scan.",
	})
	lastScan := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ardash_receivables_last_scan_timestamp_seconds",
		Help: "Unix time of the last successful overdue scan.",
	})
	registry.MustRegister(
		requests, duration,
		invoiced, outstanding, overdue, lastScan,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		invoiced:        invoiced,
		outstanding:     outstanding,
		overduePercent:  overdue,
		lastScan:        lastScan,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and duration of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// SetReceivables publishes the receivables position computed by the overdue scan.
func (m *Metrics) SetReceivables(invoiced, outstanding, overduePercent float64, at time.Time) {
	if m == nil {
		return
	}
	m.invoiced.Set(invoiced)
	m.outstanding.Set(outstanding)
	m.overduePercent.Set(overduePercent)
	m.lastScan.Set(float64(at.Unix()))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets streaming responses pass through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
