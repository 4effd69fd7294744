// Package db persists the optional run ledger: one row per dataset
// build, used for auditing collection health over time.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// WatchRun maps watch_runs. A row records one dataset build.
type WatchRun struct {
	RunID         int64     `gorm:"column:run_id;primaryKey;autoIncrement" json:"run_id"`
	OutputName    string    `gorm:"column:output_name;type:text;not null" json:"output_name"`
	GeneratedAt   time.Time `gorm:"column:generated_at;type:timestamptz;not null" json:"generated_at"`
	WindowDays    int       `gorm:"column:window_days;type:integer;not null" json:"window_days"`
	SectionCount  int       `gorm:"column:section_count;type:integer;not null;default:0" json:"section_count"`
	TotalItems    int       `gorm:"column:total_items;type:integer;not null;default:0" json:"total_items"`
	OfficialError int       `gorm:"column:official_error_count;type:integer;not null;default:0" json:"official_error_count"`
	DurationMS    int64     `gorm:"column:duration_ms;type:bigint;not null;default:0" json:"duration_ms"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()" json:"created_at"`
}

func (WatchRun) TableName() string { return "watch_runs" }

// Ledger wraps the gorm handle for run bookkeeping.
type Ledger struct {
	gdb *gorm.DB
}

func Open(ctx context.Context, databaseURL, logLevel, environment string) (*Ledger, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	gdb, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(logLevel, environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := gdb.WithContext(ctx).AutoMigrate(&WatchRun{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}

	return &Ledger{gdb: gdb}, nil
}

// RecordRun inserts one build row.
func (l *Ledger) RecordRun(ctx context.Context, run *WatchRun) error {
	if l == nil || l.gdb == nil {
		return fmt.Errorf("ledger is not initialized")
	}
	if err := l.gdb.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("insert run row: %w", err)
	}
	return nil
}

// RecentRuns returns the newest rows, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]WatchRun, error) {
	if l == nil || l.gdb == nil {
		return nil, fmt.Errorf("ledger is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	var rows []WatchRun
	err := l.gdb.WithContext(ctx).
		Order("generated_at DESC, run_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return rows, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.gdb == nil {
		return nil
	}
	sqlDB, err := l.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
