// Package logging provides the structured, leveled, key-value logger every
// component is constructed with. It wraps zap's SugaredLogger so call sites
// read the same way the teacher's own log.Info("msg", "key", value) calls
// do, but backed by a real structured-logging library (SPEC_FULL.md §10).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the alternating key-value logger threaded through every
// component by constructor injection.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
// An unrecognized level falls back to info.
func New(level string) *Logger {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return &Logger{s: z.Sugar()}
}

// Named returns a child logger tagged with the given component name, e.g.
// logger.Named("driver").
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

// Debug logs at debug level with alternating key-value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

// Info logs at info level with alternating key-value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) { l.s.Infow(msg, kv...) }

// Warn logs at warn level with alternating key-value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }

// Error logs at error level with alternating key-value pairs.
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() error { return l.s.Sync() }
