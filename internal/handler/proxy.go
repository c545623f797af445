package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"stub-proxy-go/internal/model"
	"stub-proxy-go/internal/service"
)

// ProxiedMethods are the inbound methods relayed to the backend.
var ProxiedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
}

// generatedHeaders are headers net/http adds on its own when a handler leaves
// them unset.
var generatedHeaders = []string{"Content-Type", "Date"}

// ProxyHandler adapts the relay to Echo.
type ProxyHandler struct {
	relay  *service.Relay
	logger *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(relay *service.Relay, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		relay:  relay,
		logger: logger.With("component", "proxy_handler"),
	}
}

// Handle relays the request, or answers with the fallback body. It never
// returns an error to Echo, so the client always gets a response.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	uri := req.RequestURI
	if uri == "" {
		uri = req.URL.RequestURI()
	}

	pr := &model.ProxyRequest{
		Method:        req.Method,
		Path:          uri,
		Host:          req.Host,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
		ClientAddress: c.RealIP(),
	}

	resp := h.relay.Handle(req.Context(), pr)

	dst := c.Response().Header()
	for key, vals := range resp.Header {
		dst[key] = append([]string(nil), vals...)
	}
	if !resp.Fallback {
		// Relay exactly what the backend sent.
		for _, key := range generatedHeaders {
			if _, ok := dst[key]; !ok {
				dst[key] = nil
			}
		}
	}

	// Buffered bodies go out with an explicit length, never chunked.
	if _, ok := dst["Content-Length"]; !ok && bodyAllowed(resp.StatusCode) {
		dst["Content-Length"] = []string{strconv.Itoa(len(resp.Body))}
	}

	c.Response().WriteHeader(resp.StatusCode)
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Debug("writing response body",
			"err", err,
			"path", req.URL.Path,
		)
	}
	return nil
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
