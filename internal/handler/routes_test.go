package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"stub-proxy-go/internal/metrics"
	"stub-proxy-go/internal/probe"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("backend"))
	}))
	defer backend.Close()

	tests := []struct {
		name         string
		adminEnabled bool
		metrics      bool
		method       string
		path         string
		wantStatus   int
		wantBody     string
	}{
		{"admin off relays prefix", false, false, http.MethodGet, "/_stub/healthz", http.StatusOK, "backend"},
		{"admin healthz", true, false, http.MethodGet, "/_stub/healthz", http.StatusOK, `"status":"ok"`},
		{"admin status", true, false, http.MethodGet, "/_stub/status", http.StatusOK, `"backend_available":true`},
		{"admin metrics", true, true, http.MethodGet, "/_stub/metrics", http.StatusOK, "stub_proxy_"},
		{"root", true, false, http.MethodGet, "/", http.StatusOK, "backend"},
		{"nested path", true, false, http.MethodPost, "/api/v1/hooks?x=1", http.StatusOK, "backend"},
		{"put", false, false, http.MethodPut, "/items/1", http.StatusOK, "backend"},
		{"delete", false, false, http.MethodDelete, "/items/1", http.StatusOK, "backend"},
		{"patch not allowed", false, false, http.MethodPatch, "/items/1", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Admin.Enabled = tt.adminEnabled
			cfg.Metrics.Enabled = tt.metrics

			logger := discardLogger()
			m := metrics.New()
			relay := newTestRelay(cfg, endpointOf(t, backend.Listener.Addr()))
			health := NewHealthHandler("test", probe.NewTCPProber(cfg, logger, nil), relay)

			e := echo.New()
			RegisterRoutes(e, cfg, NewProxyHandler(relay, logger), health, m)

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body, _ := io.ReadAll(rec.Body)
			if tt.wantBody != "" && !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantBody)
			}
		})
	}
}

func TestRegisterRoutes_AdminSecurityHeaders(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer backend.Close()

	cfg := testConfig()
	cfg.Admin.Enabled = true
	logger := discardLogger()
	relay := newTestRelay(cfg, endpointOf(t, backend.Listener.Addr()))
	health := NewHealthHandler("test", probe.NewTCPProber(cfg, logger, nil), relay)

	e := echo.New()
	RegisterRoutes(e, cfg, NewProxyHandler(relay, logger), health, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_stub/healthz", http.NoBody))
	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("admin X-Content-Type-Options = %q, want %q", v, "nosniff")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relayed", http.NoBody))
	if v := rec.Header().Get("X-Content-Type-Options"); v != "" {
		t.Errorf("relayed X-Content-Type-Options = %q, want none added", v)
	}
}
