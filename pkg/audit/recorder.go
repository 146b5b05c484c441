// Package audit records an append-only trail of state changes. Events are
// written in the same transaction as the mutation they describe and are never
// updated or deleted.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry is the input to Record.
type Entry struct {
	EntityType EntityType
	EntityID   string
	ActorRole  string
	Action     Action
	Before     map[string]any
	After      map[string]any
	// Timestamp defaults to the recorder clock when zero.
	Timestamp time.Time
}

// ErrInvalidPageToken is returned by List for a malformed page token.
var ErrInvalidPageToken = errors.New("invalid page token")

// Recorder appends and reads audit events.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecorder creates a Recorder backed by db.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the recorder that stamps events using now.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	return &Recorder{db: r.db, now: now}
}

// WithTx returns a copy of the recorder that writes through tx, so events
// commit or roll back together with the caller's mutation.
func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	return &Recorder{db: tx, now: r.now}
}

// AutoMigrate creates or updates the audit_events table.
func (r *Recorder) AutoMigrate() error {
	if err := r.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Record appends one immutable event.
func (r *Recorder) Record(ctx context.Context, e Entry) (*EventRecord, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	rec := &EventRecord{
		EventID:    uuid.New().String(),
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		ActorRole:  e.ActorRole,
		Action:     string(e.Action),
		Before:     Snapshot(e.Before),
		After:      Snapshot(e.After),
		RecordedAt: ts.UTC(),
	}
	if rec.Before == nil {
		rec.Before = Snapshot{}
	}
	if rec.After == nil {
		rec.After = Snapshot{}
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	return rec, nil
}

func validateEntry(e Entry) error {
	switch {
	case !e.EntityType.Valid():
		return fmt.Errorf("invalid audit entry: unknown entity type %q", e.EntityType)
	case !e.Action.Valid():
		return fmt.Errorf("invalid audit entry: unknown action %q", e.Action)
	case e.EntityID == "":
		return errors.New("invalid audit entry: missing entity id")
	case e.ActorRole == "":
		return errors.New("invalid audit entry: missing actor role")
	}
	return nil
}

// ListByEntity returns every event for one entity, newest first.
func (r *Recorder) ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]EventRecord, error) {
	var records []EventRecord
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		Order("recorded_at DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list audit events by entity: %w", err)
	}
	return records, nil
}

// Get returns one event by its public id. Returns nil, nil if no event exists.
func (r *Recorder) Get(ctx context.Context, eventID string) (*EventRecord, error) {
	var rec EventRecord
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return &rec, nil
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	EntityType string
	EntityID   string
	Action     string
	ActorRole  string
}

// List returns paginated events matching filter, newest first.
// pageToken is the offset returned by the previous page; pass "" for the first page.
func (r *Recorder) List(ctx context.Context, filter ListFilter, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := 0
	if pageToken != "" {
		v, err := strconv.Atoi(pageToken)
		if err != nil || v < 0 {
			return nil, "", 0, fmt.Errorf("%w: %q", ErrInvalidPageToken, pageToken)
		}
		offset = v
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&EventRecord{})
		if filter.EntityType != "" {
			q = q.Where("entity_type = ?", filter.EntityType)
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.ActorRole != "" {
			q = q.Where("actor_role = ?", filter.ActorRole)
		}
		return q
	}

	db := r.db.WithContext(ctx)
	var totalSize int64
	if err := buildQuery(db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	var records []EventRecord
	err := buildQuery(db).
		Order("recorded_at DESC").Order("id DESC").
		Offset(offset).Limit(pageSize + 1).
		Find(&records).Error
	if err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = strconv.Itoa(offset + pageSize)
		records = records[:pageSize]
	}
	return records, nextToken, int(totalSize), nil
}
