// Package repository persists export job history in SQLite through GORM,
// using the pure Go driver so the binary stays CGO-free.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ChadR23/sentry-six/internal/models"
)

// slowQueryThreshold marks queries worth a warning.
const slowQueryThreshold = time.Second

// Open opens (or creates) the job-history database and migrates its
// schema. The path may be ":memory:" for tests.
func Open(path string, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	// PRAGMAs ride on the DSN so every pooled connection gets them.
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 &slogGormLogger{logger: log},
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.ExportJobRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	// SQLite in WAL mode allows concurrent readers with a single writer;
	// a small pool avoids lock contention.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)

	return db, nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// slogGormLogger implements GORM's logger.Interface on slog.
type slogGormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

func (l *slogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &slogGormLogger{logger: l.logger, level: level}
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && err != gorm.ErrRecordNotFound:
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "database error",
			"sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		l.logger.WarnContext(ctx, "slow query",
			"sql", sql, "rows", rows, "elapsed", elapsed)
	default:
		if l.logger.Enabled(ctx, slog.LevelDebug) {
			sql, rows := fc()
			l.logger.DebugContext(ctx, "database query",
				"sql", sql, "rows", rows, "elapsed", elapsed)
		}
	}
}
