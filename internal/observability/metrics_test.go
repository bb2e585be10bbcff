package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/projects/{id}/stock")
	req := httptest.NewRequest(http.MethodGet, "/projects/p1/stock", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `sitestock_http_requests_total{code="418",route="/projects/{id}/stock"} 1`)
	require.Contains(t, body, `sitestock_http_request_duration_seconds_bucket{route="/projects/{id}/stock"`)
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.MovementsRecorded("Purchase", 3)
	metrics.MovementsRecorded("Sale", 0)
	metrics.CommandRejected("insufficient_stock")
	metrics.LockContended()

	body := scrape(t, metrics)
	require.Contains(t, body, `sitestock_movements_recorded_total{mode="Purchase"} 3`)
	require.NotContains(t, body, `mode="Sale"`)
	require.Contains(t, body, `sitestock_commands_rejected_total{reason="insufficient_stock"} 1`)
	require.Contains(t, body, "sitestock_project_lock_contention_total 1")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.MovementsRecorded("Purchase", 1)
	metrics.LockContended()

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRegistererExposesExtraCollectors(t *testing.T) {
	metrics := NewMetrics()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sitestock_extra_total", Help: "extra"})
	metrics.Registerer().MustRegister(counter)
	counter.Inc()

	require.Contains(t, scrape(t, metrics), "sitestock_extra_total 1")
}
