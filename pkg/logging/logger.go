// Package logging configures the zerolog logger shared by the client, the
// pagination engine and the binaries.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace additionally logs every page link that is followed.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration. The env tags are read by the binaries.
type Config struct {
	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer `env:"-"`

	// Level is the minimum log level to output.
	Level LogLevel `env:"LOG_LEVEL" envDefault:"info"`

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool `env:"LOG_PRETTY" envDefault:"false"`
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	// zerolog.Ctx falls back to this when a context carries no logger.
	zerolog.DefaultContextLogger = &log.Logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithContext attaches logger to ctx, e.g. one carrying a request ID.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or the global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// ForComponent returns the logger attached to ctx tagged with component, or
// fallback when ctx carries none.
func ForComponent(ctx context.Context, component string, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", component).Logger()
	}
	return fallback
}

// Level guidelines:
//
// Trace: each page link followed by an iterator or drain
//
// Debug: detail for diagnosing a single request
//   - cache hit/miss, ETag revalidation
//   - token refresh
//   - completed drains
//
// Info: normal operation events
//   - server startup/shutdown
//   - concurrent drains started/finished
//   - 304 Not Modified responses
//
// Warn: the operation continues but something degraded
//   - retry attempts
//   - 429 responses and Retry-After waits
//   - cache or token store failures
//
// Error: a request failed after retries, or the circuit opened
//
// Common fields:
//   - url: requested URL
//   - status_code: HTTP status code
//   - error_class: transport, auth, decode, client, server, rate_limit
//   - kind: offset or cursor window
//   - retry_after: server-requested wait
//   - request_id: proxy request ID
