package logger

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger implements Logger on top of a slog.Handler.
type SlogLogger struct {
	inner *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger creates a JSON logger writing to w. Timestamps are rendered in
// tz when it is non-nil, otherwise in the local zone.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) *SlogLogger {
	opts := &slog.HandlerOptions{
		Level: toSlogLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && tz != nil {
				a.Value = slog.TimeValue(a.Value.Time().In(tz))
			}
			return a
		},
	}
	return &SlogLogger{inner: slog.New(slog.NewJSONHandler(w, opts))}
}

// Discard returns a logger that drops everything. Components fall back to it
// when constructed without a logger.
func Discard() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, nil)
}

// FileConfig configures a rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger creates a logger writing to a size-rotated file. The returned
// closer must be closed on shutdown.
func NewFileLogger(cfg FileConfig, level LogLevel, tz *time.Location) (*SlogLogger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return NewSlogLogger(rotator, level, tz), rotator
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func (l *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	l.inner.LogAttrs(context.Background(), level, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *SlogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

// With returns a child logger carrying fields on every record.
func (l *SlogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, a := range toAttrs(fields) {
		args = append(args, a)
	}
	return &SlogLogger{inner: l.inner.With(args...)}
}

// Module returns a child logger tagged with module=name.
func (l *SlogLogger) Module(name string) Logger {
	return &SlogLogger{inner: l.inner.With(slog.String("module", name))}
}
