package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/net/netutil"

	"stub-proxy-go/internal/client"
	"stub-proxy-go/internal/config"
	"stub-proxy-go/internal/handler"
	"stub-proxy-go/internal/metrics"
	"stub-proxy-go/internal/middleware"
	"stub-proxy-go/internal/model"
	"stub-proxy-go/internal/probe"
	"stub-proxy-go/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("stub-proxy"),
		kong.Description("Local reverse proxy that answers with a stub response when the backend is down."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	// The env file must be applied before anything reads the environment.
	envFile := config.LoadEnvFile(cli.EnvFile)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			func() config.EnvFile { return envFile },
			config.Load,
			newLogger,
			config.NewEndpoint,
			metrics.New,
			newEcho,
			client.NewBackendClient,
			fx.Annotate(probe.NewTCPProber, fx.As(new(service.Prober))),
			service.NewRelay,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(reportEnvFile, warnConfigPermissions, handler.RegisterRoutes, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks. The write timeout
	// leaves room for a full probe plus backend timeout.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = cfg.Backend.Timeout() + cfg.Backend.ProbeTimeout() + 5*time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	if cfg.Metrics.Enabled {
		prefix := ""
		if cfg.Admin.Enabled {
			prefix = cfg.Admin.Prefix
		}
		e.Use(middleware.MetricsMiddleware(m, prefix))
	}

	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func reportEnvFile(f config.EnvFile, logger *slog.Logger) {
	f.Report(logger)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, ep model.Endpoint, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			if n := cfg.Server.MaxConnections; n > 0 {
				ln = netutil.LimitListener(ln, n)
			}

			logger.Info("stub proxy listening",
				"addr", addr,
				"backend", ep.Addr(),
				"config", cfg.FilePath(),
			)
			logger.Info("backend available: requests are relayed; backend unavailable: stub JSON response is returned")
			if cfg.Admin.Enabled {
				logger.Info("admin endpoints enabled", "prefix", cfg.Admin.Prefix, "metrics", cfg.Metrics.Enabled)
			}

			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
