// Package metrics exposes Prometheus instrumentation for the HTTP API and
// the report engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edugenai/insights/internal/model"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ReportsBuilt    *prometheus.CounterVec
	ReportDuration  prometheus.Histogram
	ReportQuestions prometheus.Histogram
	StaleReports    prometheus.Counter
	RecordsImported *prometheus.CounterVec
}

// New creates a registry with the process and Go collectors plus the
// application metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route"},
		),
		ReportsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_reports_built_total",
				Help: "Reports built, by chart series kind",
			},
			[]string{"kind"},
		),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "insights_report_duration_seconds",
			Help:    "Time to load a snapshot and build a report",
			Buckets: prometheus.DefBuckets,
		}),
		ReportQuestions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "insights_report_questions",
			Help:    "Questions returned per report",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		StaleReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insights_reports_stale_total",
			Help: "Reports superseded by a newer request from the same client",
		}),
		RecordsImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_records_imported_total",
				Help: "Records written to the snapshot store, by collection",
			},
			[]string{"collection"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.ReportsBuilt,
		m.ReportDuration,
		m.ReportQuestions,
		m.StaleReports,
		m.RecordsImported,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts and times requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveReport records one built report.
func (m *Metrics) ObserveReport(kind model.SeriesKind, elapsed time.Duration, questions, points int, stale bool) {
	label := string(kind)
	if label == "" {
		label = "none"
	}
	m.ReportsBuilt.WithLabelValues(label).Inc()
	m.ReportDuration.Observe(elapsed.Seconds())
	m.ReportQuestions.Observe(float64(questions))
	if stale {
		m.StaleReports.Inc()
	}
}

// ObserveImport records n records written for a collection.
func (m *Metrics) ObserveImport(collection string, n int) {
	m.RecordsImported.WithLabelValues(collection).Add(float64(n))
}
