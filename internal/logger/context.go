package logger

import (
	"context"
	"log/slog"
)

type fieldsKey struct{}

// WithFields returns a context whose Ctx* log records carry args as extra
// key/value pairs, after any pairs already stored on ctx.
func WithFields(ctx context.Context, args ...any) context.Context {
	prev := fieldsOf(ctx)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(append(fields, prev...), args...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func fieldsOf(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]any)
	return fields
}

// FromContext returns the global logger with the fields stored on ctx.
func FromContext(ctx context.Context) *slog.Logger {
	if fields := fieldsOf(ctx); len(fields) > 0 {
		return GetLogger().With(fields...)
	}
	return GetLogger()
}

func logCtx(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	FromContext(ctx).Log(ctx, level, msg, args...)
}

func CtxDebug(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelDebug, msg, args...)
}

func CtxInfo(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelInfo, msg, args...)
}

func CtxWarn(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelWarn, msg, args...)
}

func CtxError(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelError, msg, args...)
}

// CtxWithError logs at error level with err under the "error" key.
func CtxWithError(ctx context.Context, msg string, err error, args ...any) {
	logCtx(ctx, slog.LevelError, msg, append([]any{"error", err.Error()}, args...)...)
}
