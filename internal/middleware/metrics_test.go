package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"stub-proxy-go/internal/metrics"
)

func serve(e *echo.Echo, method, path string) int {
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/_stub"))
	e.GET("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if code := serve(e, http.MethodGet, "/webhooks/notion"); code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200", metrics.RouteProxy))
	if got != 1 {
		t.Errorf("requests_total{route=proxy} = %v, want 1", got)
	}
	if v := testutil.ToFloat64(m.RequestsInFlight); v != 0 {
		t.Errorf("requests_in_flight = %v, want 0 after completion", v)
	}
}

func TestMetricsMiddleware_AdminRoute(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/_stub"))
	e.GET("/_stub/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	serve(e, http.MethodGet, "/_stub/healthz")

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200", metrics.RouteAdmin)); got != 1 {
		t.Errorf("requests_total{route=admin} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, ""))
	e.POST("/hook", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})

	serve(e, http.MethodPost, "/hook")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "stub_proxy_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected stub_proxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/_stub"))
	e.GET("/limited", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "slow down")
	})

	serve(e, http.MethodGet, "/limited")

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "429", metrics.RouteProxy)); got != 1 {
		t.Errorf("requests_total{status_code=429} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/_stub"))
	e.Any("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	serve(e, "XYZZY", "/test")

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("other", "200", metrics.RouteProxy)); got != 1 {
		t.Errorf("requests_total{method=other} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_MethodNotAllowed(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/_stub"))
	e.GET("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if code := serve(e, http.MethodPatch, "/x"); code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", code, http.StatusMethodNotAllowed)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("PATCH", "405", metrics.RouteProxy)); got != 1 {
		t.Errorf("requests_total{status_code=405} = %v, want 1", got)
	}
}
