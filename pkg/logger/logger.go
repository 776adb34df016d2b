package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance. Development output is human readable,
// every other environment emits JSON lines.
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout

	if environment == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return &Logger{Logger: logger}
}

// NewWithLevel creates a logger and applies a textual level ("debug", "warn", ...).
// Unknown levels fall back to info.
func NewWithLevel(serviceName, environment, level string) *Logger {
	l := New(serviceName, environment)
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	l.Logger = l.Logger.Level(lvl)
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("request_id", requestID).Logger(),
	}
}

// WithUser returns a logger with the authenticated caller attached
func (l *Logger) WithUser(userID int64, username string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Int64("user_id", userID).Str("username", username).Logger(),
	}
}

// WithSite returns a logger scoped to one warehouse site
func (l *Logger) WithSite(siteID int64) *Logger {
	return &Logger{
		Logger: l.Logger.With().Int64("site_id", siteID).Logger(),
	}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}
