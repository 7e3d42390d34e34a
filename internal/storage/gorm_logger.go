// ABOUTME: Routes gorm's query and error logging into the store's zap logger.
// ABOUTME: Keeps stdout free for command output and the MCP stdio stream.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormZapLogger implements gormlogger.Interface on top of zap. Statements are logged at
// debug level; failed statements at warn, except lookups that found no row.
type gormZapLogger struct {
	logger *zap.Logger
	level  gormlogger.LogLevel
}

func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	return gormZapLogger{logger: logger.Named("gorm"), level: gormlogger.Warn}
}

func (l gormZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l gormZapLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l gormZapLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l gormZapLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, args...))
	}
}

func (l gormZapLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error {
		query, rows := fc()
		l.logger.Warn("sql statement failed",
			zap.String("sql", query),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", time.Since(begin)),
			zap.Error(err),
		)
		return
	}

	if ce := l.logger.Check(zap.DebugLevel, "sql statement"); ce != nil {
		query, rows := fc()
		ce.Write(
			zap.String("sql", query),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", time.Since(begin)),
		)
	}
}
