package storage

import (
	"context"
	"errors"
	"time"

	"cdpinspect/internal/ctxkeys"
	"cdpinspect/internal/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger 将 GORM 日志转接到项目日志接口
type GormLogger struct {
	log           logger.Logger
	LogLevel      gormlogger.LogLevel
	SlowThreshold time.Duration
}

// NewGormLogger 创建新的GormLogger实例
func NewGormLogger(l logger.Logger) *GormLogger {
	return &GormLogger{
		log:           l.With("component", "storage"),
		LogLevel:      gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info 打印info级别日志
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.log.Info(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

// Warn 打印warn级别日志
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.Warn(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

// Error 打印error级别日志
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.log.Error(msg, "traceId", ctxkeys.TraceID(ctx), "data", data)
	}
}

// Trace 打印SQL日志
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"traceId", ctxkeys.TraceID(ctx),
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= gormlogger.Error:
		l.log.Err(err, "SQL执行错误", fields...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		l.log.Warn("慢SQL查询", append(fields, "threshold", l.SlowThreshold.String())...)
	case l.LogLevel == gormlogger.Info:
		l.log.Debug("SQL执行", fields...)
	}
}
