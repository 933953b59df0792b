// Package logging configures the process-wide zerolog logger.
//
// Grounded on cuemby-warren's pkg/log/log.go Init/WithComponent shape:
// same Level enum, same console-vs-JSON output switch, same per-
// component child-logger helper.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, set by Configure.
var Logger zerolog.Logger

// Level is one of the accepted zerolog severities.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls Configure's output shape.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Configure sets the global zerolog level and builds Logger.
func Configure(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagging every line with the
// originating component (e.g. "changelog", "syncengine").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
