package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, set by InitLogging. Packages obtain a
// child logger scoped to their subsystem via WithComponent rather than
// writing to Logger directly.
var Logger zerolog.Logger

// LogLevel names one of zerolog's level strings, accepted verbatim from the
// LOG_LEVEL env var.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig controls InitLogging's output format and verbosity.
type LogConfig struct {
	Level  LogLevel
	JSON   bool
	Pretty bool
	Output io.Writer
}

// InitLogging sets the package-level Logger. It is called once at process
// boot by cmd/worker and cmd/coordinator, before any component that logs is
// constructed.
func InitLogging(cfg LogConfig) {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case LogLevelDebug:
		level = zerolog.DebugLevel
	case LogLevelWarn:
		level = zerolog.WarnLevel
	case LogLevelError:
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty && !cfg.JSON {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagging every entry with the given
// subsystem name, e.g. "doclifecycle", "pushscheduler", "pruner".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorkerID returns a child logger tagging every entry with this
// process's worker id.
func WithWorkerID(workerID string) zerolog.Logger {
	return Logger.With().Str("worker_id", workerID).Logger()
}
