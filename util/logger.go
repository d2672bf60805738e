package util

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/infigaming-com/go-membus/pubsub"
)

func initLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	zapCfg.EncoderConfig.CallerKey = "ln"
	zapCfg.EncoderConfig.FunctionKey = ""
	zapCfg.EncoderConfig.LevelKey = "severity"
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}

	return zapCfg.Build()
}

// NewLogger builds the production logger and installs it as the zap global.
// The returned func restores the previous global and flushes.
func NewLogger(level string) (*zap.Logger, func(), error) {
	logger, err := initLogger(level)
	if err != nil {
		return nil, nil, err
	}

	undo := zap.ReplaceGlobals(logger)

	return logger, func() {
		undo()
		_ = logger.Sync()
	}, nil
}

type zapLogger struct {
	lg *zap.SugaredLogger
}

// NewZapLogger adapts lg to pubsub.Logger. Entries carry the correlation id
// found in the context, if any.
func NewZapLogger(lg *zap.Logger) pubsub.Logger {
	return &zapLogger{lg: lg.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *zapLogger) with(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return l.lg
	}
	if id, err := CorrelationIdFromCtx(ctx); err == nil {
		return l.lg.With("correlation_id", id)
	}
	return l.lg
}

func (l *zapLogger) Debug(ctx context.Context, msg string, kv ...any) {
	l.with(ctx).Debugw(msg, kv...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, kv ...any) {
	l.with(ctx).Infow(msg, kv...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, kv ...any) {
	l.with(ctx).Warnw(msg, kv...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, kv ...any) {
	l.with(ctx).Errorw(msg, kv...)
}
