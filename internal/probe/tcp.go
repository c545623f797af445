// Package probe checks whether the backend accepts TCP connections.
package probe

import (
	"context"
	"log/slog"
	"net"
	"time"

	"stub-proxy-go/internal/config"
	"stub-proxy-go/internal/metrics"
	"stub-proxy-go/internal/model"
)

// TCPProber answers "is anything listening on the endpoint right now".
// The answer is a point-in-time estimate: the backend may go away between
// the probe and the request that follows it.
type TCPProber struct {
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTCPProber creates a TCPProber using the configured probe timeout.
// The metrics parameter is optional; pass nil to disable probe metrics.
func NewTCPProber(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *TCPProber {
	return &TCPProber{
		timeout: cfg.Backend.ProbeTimeout(),
		logger:  logger.With("component", "tcp_prober"),
		metrics: m,
	}
}

// IsAvailable dials the endpoint once and reports whether the connection
// succeeded within the timeout. Every failure, including a cancelled ctx,
// is reported as false. The probe connection is always closed.
func (p *TCPProber) IsAvailable(ctx context.Context, ep model.Endpoint) bool {
	start := time.Now()
	ok := p.dial(ctx, ep)
	p.observe(ok, time.Since(start))
	return ok
}

func (p *TCPProber) dial(ctx context.Context, ep model.Endpoint) bool {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		p.logger.Debug("backend probe failed", "addr", ep.Addr(), "err", err)
		return false
	}
	_ = conn.Close()
	return true
}

func (p *TCPProber) observe(ok bool, d time.Duration) {
	if p.metrics == nil {
		return
	}
	result := "down"
	if ok {
		result = "up"
	}
	p.metrics.ProbeResults.WithLabelValues(result).Inc()
	p.metrics.ProbeDuration.Observe(d.Seconds())
}
