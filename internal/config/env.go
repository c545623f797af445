package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"stub-proxy-go/internal/model"
)

// PortEnvVars are checked in order; the first valid port wins.
var PortEnvVars = []string{"PORT", "SERVER_PORT", "HTTP_PORT"}

// DefaultBackendPort is used when neither flags, environment nor config name a port.
const DefaultBackendPort = 8080

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvFile records the outcome of loading a KEY=VALUE file into the environment.
type EnvFile struct {
	Path string
	Keys       []string // keys set by this file
	Overridden []string // keys whose process environment value was replaced
	Err  error
}

// LoadEnvFile reads a dotenv-style file (# comments, optional quotes, optional
// "export" prefix) and sets every key in the process environment. Values
// from the file replace values already in the environment. An empty path
// disables loading.
func LoadEnvFile(path string) EnvFile {
	res := EnvFile{Path: path}
	if path == "" {
		return res
	}

	values, err := godotenv.Read(path)
	if err != nil {
		res.Err = err
		return res
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if prev, set := os.LookupEnv(k); set && prev != values[k] {
			res.Overridden = append(res.Overridden, k)
		}
		if err := os.Setenv(k, values[k]); err != nil {
			res.Err = fmt.Errorf("set %s: %w", k, err)
			return res
		}
		res.Keys = append(res.Keys, k)
	}
	return res
}

// Report logs the result of LoadEnvFile. Values are never logged.
func (f EnvFile) Report(logger *slog.Logger) {
	switch {
	case f.Path == "":
		return
	case errors.Is(f.Err, fs.ErrNotExist):
		logger.Warn("env file not found", "path", f.Path)
	case f.Err != nil:
		logger.Warn("env file not loaded", "path", f.Path, "err", f.Err)
	default:
		logger.Debug("loaded env file", "path", f.Path, "keys", f.Keys, "overridden", f.Overridden)
	}
}

// ResolvePort returns the first value among PortEnvVars that parses as a
// port number, together with the variable it came from. Invalid values are
// logged and skipped.
func ResolvePort(lookup LookupFunc, logger *slog.Logger) (port int, source string, ok bool) {
	for _, name := range PortEnvVars {
		raw, _ := lookup(name)
		if raw == "" {
			continue
		}
		p, err := parsePort(raw)
		if err != nil {
			logger.Warn("invalid port value in environment, skipping",
				"var", name,
				"value", raw,
				"err", err,
			)
			continue
		}
		return p, name, true
	}
	return 0, "", false
}

func parsePort(raw string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if p < 1 || p > 65535 {
		return 0, errors.New("out of range 1-65535")
	}
	return p, nil
}

// NewEndpoint resolves the backend endpoint from the --backend-port flag, the
// process environment, the config file and finally DefaultBackendPort.
func NewEndpoint(cfg *Config, logger *slog.Logger) (model.Endpoint, error) {
	return resolveEndpoint(cfg, os.LookupEnv, logger)
}

func resolveEndpoint(cfg *Config, lookup LookupFunc, logger *slog.Logger) (model.Endpoint, error) {
	port, source := cfg.backendPortFlag, "flag"
	if port == 0 {
		var ok bool
		if port, source, ok = ResolvePort(lookup, logger); !ok {
			port, source = cfg.Backend.Port, "config"
		}
	}
	if port == 0 {
		port, source = DefaultBackendPort, "default"
	}

	ep := model.Endpoint{Host: cfg.Backend.Host, Port: port}
	if IsLocalHost(ep.Host) && ep.Port == cfg.Server.Port {
		return model.Endpoint{}, fmt.Errorf("config: backend %s shares the listen port %d; the proxy would forward to itself", ep.Addr(), cfg.Server.Port)
	}

	logger.Debug("resolved backend endpoint", "addr", ep.Addr(), "source", source)
	return ep, nil
}
