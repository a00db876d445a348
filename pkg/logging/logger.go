// Package logging configures the zerolog logger shared by the paginator,
// its page sources and the pagewalk command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every paginator state transition.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs walk progress and startup/shutdown.
	LevelInfo LogLevel = "info"

	// LevelWarn logs failed page fetches.
	LevelWarn LogLevel = "warn"

	// LevelError logs contract violations and aborted walks.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by LOG_LEVEL and LOG_PRETTY.
// Invalid values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if level, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		cfg.Level = level
	}
	if pretty, err := strconv.ParseBool(os.Getenv("LOG_PRETTY")); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// ParseLevel validates a level name. "warning" is accepted as an alias of warn.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off":
		return LevelDisabled, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevel maps a LogLevel to zerolog; unknown levels fall back to info.
func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: paginator internals
//   - Fetch issued, fetch ignored (in progress / last page)
//   - Page received, reset, completion
//   - Page source requests and decoded page sizes
//
// Info: walk progress
//   - pagewalk start/finish, pages and elements written
//   - Metrics server startup/shutdown
//
// Warn: recoverable conditions
//   - Page fetch failed (the same page will be requested again)
//   - Source HTTP error responses
//   - Fetch reports lost because the loop stopped
//
// Error: contract violations and aborts
//   - Received/Failed without a fetch in progress
//   - Negative totals
//   - Walk aborted after too many consecutive failures
//
// Context Fields:
//   - component: emitting component (paginator, http-source, redis-source, pagewalk)
//   - paginator: paginator name
//   - page, page_size, total, elements: paging state
//   - endpoint, status_code, error_class: HTTP source details
//   - duration: request or walk duration
