// Package ha serializes schema migration across server replicas that share
// one database.
package ha

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"
)

// DefaultLockName identifies the registry's migration lock.
const DefaultLockName = "acd-registry-migration"

// MigrationLocker runs a function while holding a database-wide lock.
type MigrationLocker interface {
	// WithLock blocks until the lock is held, runs fn, then releases the lock.
	WithLock(ctx context.Context, fn func() error) error
}

// LockOption tunes the table-based lock used on SQLite.
type LockOption func(*tableLock)

// WithRetry sets how often and how many times acquisition is attempted.
func WithRetry(attempts int, interval time.Duration) LockOption {
	return func(l *tableLock) {
		if attempts > 0 {
			l.attempts = attempts
		}
		if interval > 0 {
			l.interval = interval
		}
	}
}

// WithStaleAfter sets the age after which a lock row left by a crashed holder
// is discarded.
func WithStaleAfter(d time.Duration) LockOption {
	return func(l *tableLock) { l.staleAfter = d }
}

// NewMigrationLocker picks a lock strategy for the database dialect:
// advisory locks on PostgreSQL, named locks on MySQL, and a lock table
// elsewhere. The lock table is created immediately.
func NewMigrationLocker(db *gorm.DB, name string, opts ...LockOption) MigrationLocker {
	if db == nil {
		return noopLock{}
	}
	if name == "" {
		name = DefaultLockName
	}
	switch db.Dialector.Name() {
	case "postgres":
		return &pgAdvisoryLock{db: db, key: int64(crc32.ChecksumIEEE([]byte(name)))}
	case "mysql":
		return &mysqlNamedLock{db: db, name: name, timeout: 60}
	}

	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}
	l := &tableLock{
		db:         db,
		name:       name,
		holder:     holder,
		attempts:   30,
		interval:   time.Second,
		staleAfter: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := db.AutoMigrate(&migrationLockRecord{}); err != nil {
		slog.Warn("create migration lock table", "component", "ha", "error", err)
	}
	return l
}

type noopLock struct{}

func (noopLock) WithLock(_ context.Context, fn func() error) error { return fn() }

// pgAdvisoryLock holds a session advisory lock on one pinned connection.
type pgAdvisoryLock struct {
	db  *gorm.DB
	key int64
}

func (l *pgAdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", l.key).Error; err != nil {
			return fmt.Errorf("acquire migration advisory lock: %w", err)
		}
		defer conn.Exec("SELECT pg_advisory_unlock(?)", l.key)
		return fn()
	})
}

// mysqlNamedLock holds a GET_LOCK named lock on one pinned connection.
type mysqlNamedLock struct {
	db      *gorm.DB
	name    string
	timeout int
}

func (l *mysqlNamedLock) WithLock(ctx context.Context, fn func() error) error {
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var got *int
		if err := conn.Raw("SELECT GET_LOCK(?, ?)", l.name, l.timeout).Scan(&got).Error; err != nil {
			return fmt.Errorf("acquire migration lock %q: %w", l.name, err)
		}
		if got == nil || *got != 1 {
			return fmt.Errorf("acquire migration lock %q: timed out after %ds", l.name, l.timeout)
		}
		defer conn.Exec("SELECT RELEASE_LOCK(?)", l.name)
		return fn()
	})
}

type migrationLockRecord struct {
	Name     string    `gorm:"primaryKey;column:name;type:varchar(128)"`
	LockedAt time.Time `gorm:"column:locked_at;not null"`
	LockedBy string    `gorm:"column:locked_by;type:varchar(255)"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableLock relies on the primary key of migration_lock: the holder is
// whoever inserted the row. Rows older than staleAfter are cleared so a
// crashed holder cannot block forever.
type tableLock struct {
	db         *gorm.DB
	name       string
	holder     string
	attempts   int
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// ErrLockNotAcquired is returned when every acquisition attempt failed.
var ErrLockNotAcquired = errors.New("migration lock not acquired")

func (l *tableLock) WithLock(ctx context.Context, fn func() error) error {
	var lastErr error
	acquired := false
	for i := 0; i < l.attempts; i++ {
		db := l.db.WithContext(ctx)
		db.Where("name = ? AND locked_at < ?", l.name, l.now().Add(-l.staleAfter)).Delete(&migrationLockRecord{})

		lastErr = db.Create(&migrationLockRecord{Name: l.name, LockedAt: l.now(), LockedBy: l.holder}).Error
		if lastErr == nil {
			acquired = true
			break
		}
		if i == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
	if !acquired {
		return fmt.Errorf("%w after %d attempts: %v", ErrLockNotAcquired, l.attempts, lastErr)
	}

	defer l.db.Where("name = ?", l.name).Delete(&migrationLockRecord{})
	return fn()
}
