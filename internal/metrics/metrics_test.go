package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/edugenai/insights/internal/model"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})

	for _, path := range []string{"/items/1", "/items/2", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/items/{id}", "200")); got != 2 {
		t.Errorf("items counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/fail", "400")); got != 1 {
		t.Errorf("fail counter = %v, want 1", got)
	}
}

func TestObserveReport(t *testing.T) {
	m := New()
	m.ObserveReport(model.SeriesTimeline, 10*time.Millisecond, 5, 3, false)
	m.ObserveReport(model.SeriesTimeline, 10*time.Millisecond, 5, 3, true)
	m.ObserveReport(model.SeriesNone, time.Millisecond, 0, 0, false)

	if got := testutil.ToFloat64(m.ReportsBuilt.WithLabelValues("timeline")); got != 2 {
		t.Errorf("timeline reports = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ReportsBuilt.WithLabelValues("none")); got != 1 {
		t.Errorf("none reports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StaleReports); got != 1 {
		t.Errorf("stale reports = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveImport("questions", 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `insights_records_imported_total{collection="questions"} 4`) {
		t.Errorf("metrics output missing import counter:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing Go collector")
	}
}
