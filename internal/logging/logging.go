package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a wrapper around zerolog.Logger
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, file path
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg Config) (*Logger, error) {
	var output io.Writer

	// Set output
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		output = file
	}

	// Set format
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Set global logger
	log.Logger = logger

	return &Logger{logger: logger}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() (*Logger, error) {
	return NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// WithSource adds a source identity key to the logger
func (l *Logger) WithSource(sourceKey string) *Logger {
	return &Logger{logger: l.logger.With().Str("source", sourceKey).Logger()}
}

// WithCycleID adds a poll cycle correlation ID to the logger
func (l *Logger) WithCycleID(cycleID string) *Logger {
	return &Logger{logger: l.logger.With().Str("cycle_id", cycleID).Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// ErrorWithErr logs an error message with an error
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// LogNowPlaying logs one accepted now-playing observation
func (l *Logger) LogNowPlaying(device, state string, app, title *string) {
	evt := l.logger.Info().
		Str("device", device).
		Str("state", state)

	if app != nil {
		evt = evt.Str("app", *app)
	}
	if title != nil {
		evt = evt.Str("title", *title)
	}

	evt.Msg("Now playing")
}

// LogPollCycle logs a completed poll cycle
func (l *Logger) LogPollCycle(cycleID string, sources, appended, suppressed, failed int, duration time.Duration) {
	l.logger.Info().
		Str("cycle_id", cycleID).
		Int("sources", sources).
		Int("appended", appended).
		Int("suppressed", suppressed).
		Int("failed", failed).
		Dur("duration_ms", duration).
		Msg("Poll cycle complete")
}

// LogRebuild logs a session table rebuild
func (l *Logger) LogRebuild(events, sessions, skippedGroups int, duration time.Duration) {
	l.logger.Info().
		Int("events", events).
		Int("sessions", sessions).
		Int("skipped_groups", skippedGroups).
		Dur("duration_ms", duration).
		Msg("Session table rebuilt")
}

// LogStoreOperation logs a database operation
func (l *Logger) LogStoreOperation(operation string, duration time.Duration, err error) {
	evt := l.logger.Debug()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("operation", operation).
		Dur("duration_ms", duration).
		Msg("Store operation")
}
