package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel mirrors the charmlog levels with an explicit disabled state so
// callers can silence the pipeline entirely (used heavily in tests).
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	DisabledLevel
)

func (l LogLevel) toCharmlog() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.FatalLevel + 1
	default:
		return charmlog.InfoLevel
	}
}

// ParseLevel is forgiving: any unrecognized string defaults to InfoLevel
// rather than erroring, since log configuration should never block startup.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "disabled", "none", "off":
		return DisabledLevel
	default:
		return InfoLevel
	}
}

// Logger is the narrow surface every package in this module depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type loggerImpl struct {
	inner *charmlog.Logger
}

func (l *loggerImpl) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *loggerImpl) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *loggerImpl) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *loggerImpl) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

func (l *loggerImpl) With(args ...any) Logger {
	return &loggerImpl{inner: l.inner.With(args...)}
}

// Config controls how a Logger is constructed.
type Config struct {
	Level     LogLevel
	Output    io.Writer
	JSON      bool
	AddSource bool
	TimeFormat string
}

func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// TestConfig returns a Config suitable for unit tests: disabled output so
// test runs stay quiet unless a test explicitly wants to inspect logs.
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = DisabledLevel
	cfg.Output = io.Discard
	return cfg
}

func NewLogger(cfg Config) Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.AddSource,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	inner := charmlog.NewWithOptions(cfg.Output, opts)
	inner.SetLevel(cfg.Level.toCharmlog())
	return &loggerImpl{inner: inner}
}

type ctxKey struct{}

// LoggerCtxKey is exported so tests can assert on context plumbing without
// duplicating the key type.
var LoggerCtxKey = ctxKey{}

var defaultLogger Logger = NewLogger(DefaultConfig())

// Init replaces the package-level default logger, used once at process
// startup after configuration has been resolved.
func Init(cfg Config) {
	defaultLogger = NewLogger(cfg)
}

// ContextWithLogger returns a derived context carrying logger, to be
// retrieved later with FromContext.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, logger)
}

// FromContext returns the logger attached to ctx, falling back to the
// package default when none was attached.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger
}

func GetDefault() Logger {
	return defaultLogger
}

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

func With(args ...any) Logger { return defaultLogger.With(args...) }
