// Package service implements the forward-or-fallback decision for each request.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"stub-proxy-go/internal/client"
	"stub-proxy-go/internal/header"
	"stub-proxy-go/internal/metrics"
	"stub-proxy-go/internal/model"
)

// Prober reports whether the backend currently accepts connections.
type Prober interface {
	IsAvailable(ctx context.Context, ep model.Endpoint) bool
}

// Relay forwards requests to the backend, or answers them itself when the
// backend is down or the forward fails. Handle always produces a response.
type Relay struct {
	prober   Prober
	client   *client.BackendClient
	endpoint model.Endpoint
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewRelay creates a Relay bound to a single backend endpoint.
// The metrics parameter is optional; pass nil to disable fallback metrics.
func NewRelay(p Prober, c *client.BackendClient, ep model.Endpoint, logger *slog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		prober:   p,
		client:   c,
		endpoint: ep,
		logger:   logger.With("component", "relay"),
		metrics:  m,
		now:      time.Now,
	}
}

// Endpoint returns the backend this relay forwards to.
func (r *Relay) Endpoint() model.Endpoint {
	return r.endpoint
}

// Handle probes the backend and either relays pr to it or returns the
// fallback response.
//
// The probe and the forward are separate steps, so the backend can go away
// in between. That case surfaces as a forward error and also ends in the
// fallback response.
func (r *Relay) Handle(ctx context.Context, pr *model.ProxyRequest) *model.ProxyResponse {
	r.logger.Debug("inbound request",
		"method", pr.Method,
		"path", pr.Path,
		"client", pr.ClientAddress,
	)

	if !r.prober.IsAvailable(ctx, r.endpoint) {
		r.logger.Debug("backend unavailable, returning fallback", "addr", r.endpoint.Addr())
		return r.fallback(model.ReasonBackendUnavailable)
	}

	body, err := readBody(pr.Body, pr.ContentLength)
	if err != nil {
		r.logger.Error("read request body",
			"err", err,
			"path", pr.Path,
		)
		return r.fallback(model.ReasonReadBodyFailed)
	}

	out := &model.ProxyRequest{
		Method:        pr.Method,
		Path:          pr.Path,
		Host:          pr.Host,
		Header:        header.Filter(pr.Header, header.HopByHop),
		Body:          bytes.NewReader(body),
		ContentLength: int64(len(body)),
		ClientAddress: pr.ClientAddress,
	}

	r.logger.Debug("forwarding to backend", "addr", r.endpoint.Addr())

	resp, err := r.client.Do(ctx, r.endpoint, out)
	if err != nil {
		r.logger.Error("proxy error",
			"err", err,
			"method", pr.Method,
			"path", pr.Path,
		)
		return r.fallback(model.ReasonForwardFailed)
	}

	resp.Header = header.Filter(resp.Header, header.HopByHop)

	r.logger.Debug("forwarded successfully", "status", resp.StatusCode)
	return resp
}

func (r *Relay) fallback(reason string) *model.ProxyResponse {
	if r.metrics != nil {
		r.metrics.FallbacksTotal.WithLabelValues(reason).Inc()
	}
	return model.NewFallbackResponse(r.now(), reason)
}

// readBody reads exactly n bytes. A missing or unknown length (n <= 0)
// means an empty body; chunked request bodies are not relayed.
func readBody(body io.Reader, n int64) ([]byte, error) {
	if n <= 0 || body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, n))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("body ended after %d of %d bytes: %w", len(data), n, io.ErrUnexpectedEOF)
	}
	return data, nil
}
