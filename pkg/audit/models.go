package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EntityType tags the kind of entity an audit event describes.
type EntityType string

const (
	EntityProject    EntityType = "Project"
	EntitySourceLink EntityType = "SourceLink"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityProject || t == EntitySourceLink
}

// Action tags the state change an audit event describes.
type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionUpdateStatus Action = "UPDATE_STATUS"
	ActionBindSource   Action = "BIN_SOURCE"
	ActionBind         Action = "BIN"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdateStatus, ActionBindSource, ActionBind:
		return true
	}
	return false
}

// Snapshot is a point-in-time capture of an entity stored as a JSON object.
type Snapshot map[string]any

// Scan implements the sql.Scanner interface for Snapshot.
func (s *Snapshot) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for Snapshot: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for Snapshot.
// A nil snapshot is stored as an empty object.
func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is an immutable audit log entry. ID is the insertion sequence
// and breaks ties between events sharing a timestamp.
type EventRecord struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	EventID    string    `gorm:"column:event_id;type:varchar(36);uniqueIndex:uq_audit_event_id;not null"`
	EntityType string    `gorm:"column:entity_type;type:varchar(32);index:idx_audit_entity,priority:1;not null"`
	EntityID   string    `gorm:"column:entity_id;type:varchar(128);index:idx_audit_entity,priority:2;not null"`
	ActorRole  string    `gorm:"column:actor_role;type:varchar(32);index:idx_audit_actor;not null"`
	Action     string    `gorm:"column:action;type:varchar(32);index:idx_audit_action;not null"`
	Before     Snapshot  `gorm:"column:before_state;type:text"`
	After      Snapshot  `gorm:"column:after_state;type:text"`
	RecordedAt time.Time `gorm:"column:recorded_at;index:idx_audit_entity,priority:3;not null"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }

// Event is the API-facing audit event.
type Event struct {
	ID         string         `json:"id"`
	Seq        uint64         `json:"seq"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	ActorRole  string         `json:"actor_role"`
	Action     string         `json:"action"`
	Before     map[string]any `json:"before"`
	After      map[string]any `json:"after"`
	Timestamp  string         `json:"timestamp"`
}

// ToEvent converts a stored record to its API shape.
func ToEvent(rec EventRecord) Event {
	before := map[string]any(rec.Before)
	if before == nil {
		before = map[string]any{}
	}
	after := map[string]any(rec.After)
	if after == nil {
		after = map[string]any{}
	}
	return Event{
		ID:         rec.EventID,
		Seq:        rec.ID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		ActorRole:  rec.ActorRole,
		Action:     rec.Action,
		Before:     before,
		After:      after,
		Timestamp:  rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

// EventList is a paginated list of audit events.
type EventList struct {
	Events        []Event `json:"events"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	TotalSize     int     `json:"totalSize"`
}
