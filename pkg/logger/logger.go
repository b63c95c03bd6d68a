package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logs go to stderr: stdout is reserved for extracted payloads.
var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log = newLogger(os.Stderr)
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().
		Timestamp().
		Logger()
}

// Component returns the package logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// SetOutput redirects logging, e.g. to a console writer or a test buffer.
func SetOutput(w io.Writer) {
	log = newLogger(w)
}

func ParseLevel(level string) zerolog.Level {
	switch level {
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
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}
