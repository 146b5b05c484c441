package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectStore provides persistence for project records.
type ProjectStore struct {
	db   *gorm.DB
	idMu *sync.Mutex
}

// NewProjectStore creates a new ProjectStore.
func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db, idMu: &sync.Mutex{}}
}

// WithTx returns a store bound to tx. The identifier allocation lock is shared
// with the parent store.
func (s *ProjectStore) WithTx(tx *gorm.DB) *ProjectStore {
	return &ProjectStore{db: tx, idMu: s.idMu}
}

// AutoMigrate creates or updates the projects table.
func (s *ProjectStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ProjectRecord{}); err != nil {
		return fmt.Errorf("auto-migrate projects: %w", err)
	}
	return nil
}

// LockAllocation serializes identifier allocation within this process and
// returns the unlock function. Hold it until the creating transaction ends.
func (s *ProjectStore) LockAllocation() func() {
	s.idMu.Lock()
	return s.idMu.Unlock
}

// FormatProjectID renders seq as a public project identifier.
func FormatProjectID(seq int64) string {
	return fmt.Sprintf("%s%06d", ProjectIDPrefix, seq)
}

// Get retrieves a project by its public identifier.
// Returns nil, nil if no record exists.
func (s *ProjectStore) Get(ctx context.Context, projectID string) (*ProjectRecord, error) {
	return getProject(s.db.WithContext(ctx), projectID)
}

// GetForUpdate is Get with the row locked until the transaction ends, so a
// before-snapshot cannot be overwritten by a concurrent writer. Only
// meaningful on a store bound to a transaction.
func (s *ProjectStore) GetForUpdate(ctx context.Context, projectID string) (*ProjectRecord, error) {
	return getProject(lockingRead(s.db.WithContext(ctx), clause.LockingStrengthUpdate), projectID)
}

func getProject(db *gorm.DB, projectID string) (*ProjectRecord, error) {
	var record ProjectRecord
	err := db.Where("project_id = ?", projectID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &record, nil
}

// NextSeq returns the highest allocated sequence number plus one.
func (s *ProjectStore) NextSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.WithContext(ctx).Model(&ProjectRecord{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, fmt.Errorf("read max project seq: %w", err)
	}
	return maxSeq + 1, nil
}

// Insert writes a new project. A duplicate seq or project_id surfaces as an
// error satisfying isDuplicateKey.
func (s *ProjectStore) Insert(ctx context.Context, record *ProjectRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// SetStatus overwrites the status of a project.
func (s *ProjectStore) SetStatus(ctx context.Context, projectID string, status Status, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&ProjectRecord{}).
		Where("project_id = ?", projectID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("set project status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return projectNotFound(projectID)
	}
	return nil
}

// IncrementCoverage adds step to the coverage ratio, clamped at CoverageMax.
// The read-add-clamp happens in one statement so concurrent binds never lose
// an increment.
func (s *ProjectStore) IncrementCoverage(ctx context.Context, projectID string, step float64, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&ProjectRecord{}).
		Where("project_id = ?", projectID).
		Updates(map[string]any{
			"coverage_ratio": gorm.Expr(
				"CASE WHEN coverage_ratio + ? > ? THEN ? ELSE coverage_ratio + ? END",
				step, CoverageMax, CoverageMax, step,
			),
			"updated_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("increment coverage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return projectNotFound(projectID)
	}
	return nil
}

// Count returns the number of stored projects.
func (s *ProjectStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ProjectRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

var searchFold = cases.Lower(language.Und)

// List returns projects matching filter, newest-created first.
func (s *ProjectStore) List(ctx context.Context, filter ProjectFilter) ([]ProjectRecord, error) {
	q := s.db.WithContext(ctx).Model(&ProjectRecord{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Model != "" {
		q = q.Where("model = ?", filter.Model)
	}
	if filter.Market != "" {
		q = q.Where("market = ?", filter.Market)
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + searchFold.String(term) + "%"
		q = q.Where(
			"LOWER(project_id) LIKE ? OR LOWER(vin) LIKE ? OR LOWER(part_no) LIKE ? OR LOWER(title) LIKE ?",
			like, like, like, like,
		)
	}

	var records []ProjectRecord
	if err := q.Order("created_at DESC").Order("seq DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return records, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// TranslateError covers the gorm drivers; the string checks cover
// connections opened without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}
