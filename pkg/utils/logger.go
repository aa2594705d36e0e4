package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel converts a configured level name. Unknown names map to info.
func ParseLogLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})

	SetLevel(level LogLevel)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogFormat represents the log output format
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

// ParseLogFormat converts a configured format name. Unknown names map to text.
func ParseLogFormat(name string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return LogFormatJSON
	}
	return LogFormatText
}

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level       LogLevel
	Format      LogFormat
	Output      io.Writer
	EnableFile  bool
	FilePath    string
	EnableColor bool
}

// DefaultLoggerConfig returns a default logger configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:       LogLevelInfo,
		Format:      LogFormatText,
		Output:      os.Stderr,
		EnableFile:  false,
		EnableColor: true,
	}
}

// DeployLogger is the main logger implementation, backed by zerolog.
type DeployLogger struct {
	config *LoggerConfig
	zl     zerolog.Logger
	fields map[string]interface{}
	file   *os.File
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config *LoggerConfig) (*DeployLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}

	logger := &DeployLogger{
		config: config,
		fields: make(map[string]interface{}),
	}

	if err := logger.setupOutput(); err != nil {
		return nil, fmt.Errorf("failed to setup logger output: %w", err)
	}

	return logger, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *DeployLogger {
	return &DeployLogger{
		config: &LoggerConfig{Level: LogLevelFatal + 1, Output: io.Discard},
		zl:     zerolog.Nop(),
		fields: make(map[string]interface{}),
	}
}

// setupOutput configures the logger output
func (l *DeployLogger) setupOutput() error {
	var console io.Writer = l.config.Output
	if l.config.Format == LogFormatText {
		console = zerolog.ConsoleWriter{
			Out:        l.config.Output,
			NoColor:    !l.config.EnableColor,
			TimeFormat: "15:04:05",
		}
	}

	output := console
	if l.config.EnableFile && l.config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(l.config.FilePath), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if l.file != nil {
			l.file.Close()
		}
		l.file = file

		// The file always receives JSON lines.
		output = zerolog.MultiLevelWriter(console, file)
	}

	l.zl = zerolog.New(output).Level(zerolog.TraceLevel).With().Timestamp().Fields(l.fields).Logger()
	return nil
}

// Debug logs a debug message
func (l *DeployLogger) Debug(msg string, args ...interface{}) {
	l.log(LogLevelDebug, msg, args...)
}

// Info logs an info message
func (l *DeployLogger) Info(msg string, args ...interface{}) {
	l.log(LogLevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *DeployLogger) Warn(msg string, args ...interface{}) {
	l.log(LogLevelWarn, msg, args...)
}

// Error logs an error message
func (l *DeployLogger) Error(msg string, args ...interface{}) {
	l.log(LogLevelError, msg, args...)
}

// Fatal logs a fatal message and exits
func (l *DeployLogger) Fatal(msg string, args ...interface{}) {
	l.log(LogLevelFatal, msg, args...)
	os.Exit(1)
}

func (l *DeployLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level < l.config.Level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	// WithLevel does not exit on FatalLevel; Fatal handles that itself.
	l.zl.WithLevel(level.zerolog()).Msg(msg)
}

// SetLevel sets the logging level
func (l *DeployLogger) SetLevel(level LogLevel) {
	l.config.Level = level
}

// WithField returns a logger with an additional field
func (l *DeployLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with additional fields
func (l *DeployLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &DeployLogger{
		config: l.config,
		zl:     l.zl.With().Fields(fields).Logger(),
		fields: merged,
		file:   l.file,
	}
}

// Close closes the logger and any open files
func (l *DeployLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Elapsed formats a duration for status lines.
func Elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
