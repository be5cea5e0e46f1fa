package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// logrusAdapter routes gorm's SQL-level logging through logrus,
// keeping it on a sink separate from pkg/log's application logging the
// same way the original draws a line between SQLAlchemy's echo output
// and structlog.
type logrusAdapter struct {
	log           *logrus.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger wraps log for use as db.Config.Logger.
func NewGormLogger(log *logrus.Logger) gormlogger.Interface {
	return &logrusAdapter{log: log, level: gormlogger.Warn, slowThreshold: 200 * time.Millisecond}
}

func (l *logrusAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *logrusAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Infof(msg, args...)
	}
}

func (l *logrusAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warnf(msg, args...)
	}
}

func (l *logrusAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Errorf(msg, args...)
	}
}

func (l *logrusAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := l.log.WithContext(ctx).WithFields(logrus.Fields{
		"elapsed": elapsed,
		"rows":    rows,
	})

	switch {
	case err != nil && l.level >= gormlogger.Error:
		entry.WithError(err).Error(sql)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		entry.Warnf("slow query: %s", sql)
	case l.level >= gormlogger.Info:
		entry.Debug(sql)
	}
}
