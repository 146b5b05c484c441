package investigation

import (
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestService(t *testing.T, opts ...Option) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	clk := &stepClock{t: testEpoch, step: time.Second}
	svc := NewService(db, append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, svc.AutoMigrate())
	return svc, db
}

func sampleInput(title string) CreateProjectInput {
	return CreateProjectInput{
		Title:       title,
		SymptomCode: "S1",
		Market:      "UK",
		Model:       "MG4",
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func allEvents(t *testing.T, db *gorm.DB) []audit.EventRecord {
	t.Helper()
	var events []audit.EventRecord
	require.NoError(t, db.Order("id ASC").Find(&events).Error)
	return events
}
