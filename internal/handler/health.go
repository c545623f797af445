package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"stub-proxy-go/internal/model"
	"stub-proxy-go/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the admin health and status endpoints.
type HealthHandler struct {
	version  Version
	prober   service.Prober
	endpoint model.Endpoint
}

// NewHealthHandler creates a HealthHandler reporting on the relay's backend.
func NewHealthHandler(v Version, p service.Prober, relay *service.Relay) *HealthHandler {
	return &HealthHandler{version: v, prober: p, endpoint: relay.Endpoint()}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the build version and probes the backend once.
func (h *HealthHandler) Status(c echo.Context) error {
	available := h.prober.IsAvailable(c.Request().Context(), h.endpoint)

	return c.JSON(http.StatusOK, map[string]any{
		"status":            "ok",
		"version":           string(h.version),
		"backend":           h.endpoint.Addr(),
		"backend_available": available,
	})
}
