// Package logging configures the zerolog logger shared by every stage of the
// report pipeline.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs per-request detail and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs stage progress and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs tolerated failures and pacing waits and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs stage failures only.
	LevelError LogLevel = "error"
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

	return logger
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Request URL, page number, pacing decisions
//   - Decoded page metadata (page, pages, total)
//
// Info: normal progress
//   - Pages fetched and records parsed
//   - Table shape after reshaping
//   - Figure, table export and report written
//
// Warn: tolerated problems
//   - Non-success status under on_http_error=continue
//   - Retry-After honoured, pacing waits
//   - Series without any value
//
// Error: stage failures
//   - Fetch aborted, missing chart column
//   - File I/O on figure, table or report
//
// Context Fields:
//   - component: client, pacer, pagination, chart, report, export, pipeline
//   - url: request URL
//   - page / pages: page cursor
//   - status_code: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - stage: fetch, load, snapshot, reshape, export, render, report, metrics
//   - duration: elapsed time of a request or stage
