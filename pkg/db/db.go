// Package db opens the registry database and applies its schema.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vehicle-quality/acd-registry/pkg/ha"
	"github.com/vehicle-quality/acd-registry/pkg/logging"
)

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// Config selects and tunes the database.
type Config struct {
	Type         string        `mapstructure:"type"`
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleTime  time.Duration `mapstructure:"max_idle_time"`
	LogLevel     string        `mapstructure:"log_level"`
}

// DefaultConfig returns an embedded SQLite database in the working directory.
func DefaultConfig() Config {
	return Config{
		Type:         TypeSQLite,
		DSN:          "file:acd-registry.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		MaxOpenConns: 10,
		MaxIdleTime:  5 * time.Minute,
		LogLevel:     "warn",
	}
}

// Open connects to the configured database. Duplicate-key errors are
// translated to gorm.ErrDuplicatedKey. SQLite is limited to a single
// connection so writers never contend for the file lock.
func Open(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Type) {
	case TypeSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case TypePostgres:
		dialector = postgres.Open(cfg.DSN)
	case TypeMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q (want sqlite, postgres or mysql)", cfg.Type)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialector.Name(), err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if dialector.Name() == TypeSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}
	return gdb, nil
}

// Migrator creates or updates a set of tables.
type Migrator interface {
	AutoMigrate() error
}

// Migrate runs m under the cross-replica migration lock.
func Migrate(ctx context.Context, gdb *gorm.DB, m Migrator) error {
	locker := ha.NewMigrationLocker(gdb, ha.DefaultLockName)
	if err := locker.WithLock(ctx, m.AutoMigrate); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// slogWriter routes gorm's logger output through slog.
type slogWriter struct {
	l *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.l.Info(fmt.Sprintf(format, args...))
}

func newGormLogger(level string) logger.Interface {
	lvl := logger.Warn
	switch strings.ToLower(level) {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(slogWriter{l: logging.New("gorm")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
