package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flulance/internal/logger"

	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's logging through the application slog logger.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(slowThreshold time.Duration, debug bool) *GormLogger {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &GormLogger{level: level, slowThreshold: slowThreshold}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.CtxInfo(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.CtxWarn(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.CtxError(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		logger.CtxError(ctx, "database operation failed",
			"query", sql, "rows", rows, "duration_ms", elapsed.Milliseconds(), "error", err.Error())
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		logger.CtxWarn(ctx, "slow query",
			"query", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		logger.CtxDebug(ctx, "database operation",
			"query", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	}
}
