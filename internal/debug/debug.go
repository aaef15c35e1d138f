// Package debug provides context-based debug mode with structured logging.
package debug

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	debugKey  contextKey = "debug_enabled"
	loggerKey contextKey = "logger"
)

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// Logger returns the context logger, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}

// SetupLogger builds a console logger on stderr. Debug mode lowers the level
// from warn to debug and adds caller information.
func SetupLogger(debugEnabled bool) *zap.Logger {
	return newLogger(os.Stderr, debugEnabled)
}

func newLogger(w io.Writer, debugEnabled bool) *zap.Logger {
	level := zapcore.WarnLevel
	if debugEnabled {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(zapcore.Lock(zapcore.AddSync(w))),
		level,
	)

	opts := []zap.Option{zap.AddStacktrace(zapcore.FatalLevel)}
	if debugEnabled {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...)
}
