// Package client provides the outbound HTTP client for the backend server.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stub-proxy-go/internal/config"
	"stub-proxy-go/internal/metrics"
	"stub-proxy-go/internal/model"
)

// BackendClient sends single request/response exchanges to the backend.
type BackendClient struct {
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBackendClient creates a BackendClient bounded by the configured backend timeout.
// The metrics parameter is optional; pass nil to disable backend metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	return &BackendClient{
		timeout: cfg.Backend.Timeout(),
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do sends pr to ep on a new connection and reads the complete response.
// Redirects are returned as-is, and the response body is never decoded.
// The connection is closed before Do returns.
func (c *BackendClient) Do(ctx context.Context, ep model.Endpoint, pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target, err := targetURL(ep, pr.Path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if pr.ContentLength > 0 {
		body = pr.Body
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, pr.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.ContentLength = max(pr.ContentLength, 0)
	req.Header = pr.Header
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if pr.Host != "" {
		req.Host = pr.Host
	}
	// An explicitly empty User-Agent stops net/http from adding its own.
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header["User-Agent"] = []string{""}
	}

	transport := c.newTransport()
	defer transport.CloseIdleConnections()

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	c.logger.Debug("backend request",
		"method", req.Method,
		"addr", ep.Addr(),
		"path", req.URL.Path,
	)

	method := metrics.NormalizeMethod(req.Method)
	start := time.Now()

	resp, err := httpClient.Do(req)
	if err != nil {
		c.observe(method, "", start)
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(method, "", start)
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	c.observe(method, strconv.Itoa(resp.StatusCode), start)

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// newTransport returns a transport dedicated to one exchange, so every
// forward starts on a fresh connection.
func (c *BackendClient) newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: c.timeout,
		}).DialContext,
		ResponseHeaderTimeout: c.timeout,
		DisableCompression:    true,
		MaxIdleConnsPerHost:   1,
	}
}

func (c *BackendClient) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}
}

// targetURL joins the backend address with an inbound request URI.
func targetURL(ep model.Endpoint, requestURI string) (string, error) {
	u, err := url.ParseRequestURI(requestURI)
	if err != nil {
		return "", fmt.Errorf("parse request uri %q: %w", requestURI, err)
	}
	u.Scheme = "http"
	u.Host = ep.Addr()
	u.User = nil
	return u.String(), nil
}
