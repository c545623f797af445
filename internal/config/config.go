// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	toml "github.com/pelletier/go-toml/v2"
)

func init() {
	// Report validation errors by their TOML key names.
	validation.ErrorTag = "toml"
}

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/stub-proxy/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	EnvFile     string `kong:"help='KEY=VALUE file loaded into the environment before the backend port lookup.',default='.env',env='ENV_FILE'"`
	Host        string `kong:"help='Listen host, loopback only (overrides config).',env='STUB_HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='STUB_PORT'"`
	BackendHost string `kong:"help='Backend host (overrides config).'"`
	BackendPort int    `kong:"help='Backend port (overrides PORT, SERVER_PORT, HTTP_PORT and config).'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Log     LogConfig     `toml:"log"`
	Admin   AdminConfig   `toml:"admin"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath        string // resolved config file path (unexported)
	backendPortFlag int    // --backend-port, highest precedence for the endpoint port
}

// ServerConfig holds inbound listener settings.
type ServerConfig struct {
	Host           string          `toml:"host"`
	Port           int             `toml:"port"` // 0 means "use default" (9999)
	BodyMaxBytes   int64           `toml:"body_max_bytes"`
	MaxConnections int             `toml:"max_connections"` // 0 means unlimited
	RateLimit      RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// BackendConfig describes the real server behind the proxy.
type BackendConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"` // 0 means "resolve from the environment"
	ProbeTimeoutMS int    `toml:"probe_timeout_ms"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AdminConfig exposes the proxy's own endpoints under a reserved prefix.
// Everything outside the prefix is relayed to the backend.
type AdminConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/stub-proxy/config.toml then configs/config.toml and falls back to
// built-in defaults when neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendHost != "" {
		c.Backend.Host = cli.BackendHost
	}
	c.backendPortFlag = cli.BackendPort
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Admin.Prefix = strings.TrimRight(c.Admin.Prefix, "/")
}

// Validate checks field bounds. Zero values are accepted and later replaced by defaults.
func (c *Config) Validate() error {
	if c.backendPortFlag < 0 || c.backendPortFlag > 65535 {
		return fmt.Errorf("backend port flag must be 0–65535; got %d", c.backendPortFlag)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Backend),
		validation.Field(&c.Log),
		validation.Field(&c.Admin),
		validation.Field(&c.Metrics, validation.By(func(any) error {
			if c.Metrics.Enabled && !c.Admin.Enabled {
				return errors.New("requires admin.enabled, metrics are served under the admin prefix")
			}
			return nil
		})),
	)
}

// Validate implements validation.Validatable.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Host, validation.By(loopbackHost)),
		validation.Field(&s.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&s.BodyMaxBytes, validation.Min(0)),
		validation.Field(&s.MaxConnections, validation.Min(0)),
		validation.Field(&s.RateLimit),
	)
}

// Validate implements validation.Validatable.
func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RequestsPerSecond,
			validation.When(r.Enabled, validation.Required.Error("must be > 0 when rate limiting is enabled")),
			validation.Min(0.0),
		),
	)
}

// Validate implements validation.Validatable.
func (b BackendConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Host, is.Host),
		validation.Field(&b.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&b.ProbeTimeoutMS, validation.Min(0)),
		validation.Field(&b.TimeoutSeconds, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "text")),
	)
}

// Validate implements validation.Validatable.
func (a AdminConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Prefix, validation.By(func(any) error {
			if a.Prefix != "" && a.Prefix[0] != '/' {
				return fmt.Errorf("must start with '/'; got %q", a.Prefix)
			}
			return nil
		})),
	)
}

func loopbackHost(value any) error {
	host, _ := value.(string)
	if host == "" || IsLocalHost(host) {
		return nil
	}
	return fmt.Errorf("must be a loopback address; got %q", host)
}

// IsLocalHost reports whether host names this machine's loopback interface.
func IsLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9999
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Backend.Host == "" {
		c.Backend.Host = "localhost"
	}
	if c.Backend.ProbeTimeoutMS == 0 {
		c.Backend.ProbeTimeoutMS = 500
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 15
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Admin.Prefix == "" {
		c.Admin.Prefix = "/_stub"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ProbeTimeout returns the liveness probe dial timeout.
func (b *BackendConfig) ProbeTimeout() time.Duration {
	return time.Duration(b.ProbeTimeoutMS) * time.Millisecond
}

// Timeout returns the bound on a single forward attempt.
func (b *BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
