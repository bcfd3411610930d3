package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queryLogger routes GORM statement logging through charmbracelet/log.
type queryLogger struct {
	level logger.LogLevel
}

// NewLogger returns a GORM logger that writes statements at debug level.
func NewLogger(level logger.LogLevel) logger.Interface {
	return &queryLogger{level: level}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &queryLogger{level: level}
}

func (l *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	sql, rows := fc()
	elapsed := time.Since(begin)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error {
		log.Error("SQL", "sql", sql, "rows", rows, "duration", elapsed, "err", err)
		return
	}
	if l.level >= logger.Info {
		log.Debug("SQL", "sql", sql, "rows", rows, "duration", elapsed)
	}
}
