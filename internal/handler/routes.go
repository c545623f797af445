package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stub-proxy-go/internal/config"
	"stub-proxy-go/internal/metrics"
	"stub-proxy-go/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Admin routes exist only when enabled; every other path is relayed.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	if cfg.Admin.Enabled {
		admin := e.Group(cfg.Admin.Prefix, middleware.AdminHeaders())
		admin.GET("/healthz", health.Healthz)
		admin.GET("/status", health.Status)

		if cfg.Metrics.Enabled {
			admin.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
		}
	}

	for _, method := range ProxiedMethods {
		e.Add(method, "/*", proxy.Handle)
	}
}
