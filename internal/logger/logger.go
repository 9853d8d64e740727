// Package logger provides the gateway's structured logging. Every
// component gets its own sub-logger via WithComponent so log lines carry
// which part of the dispatch pipeline emitted them.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	instance *slog.Logger
	once     sync.Once
)

// Config holds logger configuration, resolved from SQLGATEWAY_LOG_* (see
// DefaultConfig) the same way the rest of the process config is resolved
// (internal/config).
type Config struct {
	Level     string `json:"level"`     // debug, info, warn, error
	Format    string `json:"format"`    // json, text
	AddSource bool   `json:"addSource"` // include source file/line
}

// DefaultConfig returns the logger config the Startup Orchestrator installs
// before anything else runs, so even catalogue/pool load failures are
// logged structurally.
func DefaultConfig() Config {
	return Config{
		Level:     getenv("SQLGATEWAY_LOG_LEVEL", "info"),
		Format:    getenv("SQLGATEWAY_LOG_FORMAT", "json"),
		AddSource: getenv("SQLGATEWAY_LOG_SOURCE", "false") == "true",
	}
}

// Init initializes the process-wide logger exactly once.
func Init(cfg Config) {
	once.Do(func() {
		var level slog.Level
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		}

		var handler slog.Handler
		if cfg.Format == "json" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}

		instance = slog.New(handler)
		slog.SetDefault(instance)
	})
}

// Get returns the global logger, initializing it with defaults if no
// caller has called Init yet (a component probed before main runs, or a
// test running the package in isolation).
func Get() *slog.Logger {
	if instance == nil {
		Init(DefaultConfig())
	}
	return instance
}

// WithComponent returns a logger tagged with a "component" attribute —
// every dispatch-pipeline package (pool, bind, exec, dispatch, validate,
// metrics, catalog, middleware, config) logs through one of these rather
// than the bare global logger.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

func getenv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
