package investigation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
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
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ProjectRecord is the persisted form of an investigation project.
// Seq is the numeric suffix ProjectID is derived from; both are unique.
type ProjectRecord struct {
	ID            uint            `gorm:"primaryKey;autoIncrement;column:id"`
	Seq           int64           `gorm:"column:seq;uniqueIndex:uq_project_seq;not null"`
	ProjectID     string          `gorm:"column:project_id;type:varchar(16);uniqueIndex:uq_project_id;not null"`
	Title         string          `gorm:"column:title;type:varchar(255);not null"`
	Description   string          `gorm:"column:description;type:text"`
	Market        string          `gorm:"column:market;type:varchar(64);index:idx_project_market;not null"`
	Region        string          `gorm:"column:region;type:varchar(64)"`
	Model         string          `gorm:"column:model;type:varchar(64);index:idx_project_model;not null"`
	Platform      string          `gorm:"column:platform;type:varchar(64)"`
	PartNo        string          `gorm:"column:part_no;type:varchar(64)"`
	VIN           string          `gorm:"column:vin;type:varchar(32)"`
	SymptomCode   string          `gorm:"column:symptom_code;type:varchar(64);not null"`
	Severity      int             `gorm:"column:severity;not null"`
	Status        string          `gorm:"column:status;type:varchar(32);index:idx_project_status;not null"`
	Labels        JSONStringSlice `gorm:"column:labels;type:text"`
	CreatedBy     string          `gorm:"column:created_by;type:varchar(32)"`
	CoverageRatio float64         `gorm:"column:coverage_ratio;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime:false;index:idx_project_created;not null"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime:false;not null"`
}

// TableName returns the GORM table name.
func (ProjectRecord) TableName() string { return "projects" }

// SourceLinkRecord maps one upstream evidence record to the project that owns it.
// (source_id, source_type) is unique across the whole table.
type SourceLinkRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement;column:id"`
	SourceID       string    `gorm:"column:source_id;type:varchar(64);uniqueIndex:uq_source_unique,priority:1;not null"`
	SourceType     string    `gorm:"column:source_type;type:varchar(32);uniqueIndex:uq_source_unique,priority:2;not null"`
	OwnerProjectID string    `gorm:"column:owner_project_id;type:varchar(16);index:idx_source_owner;not null"`
	LinkedBy       string    `gorm:"column:linked_by;type:varchar(32)"`
	LinkedAt       time.Time `gorm:"column:linked_at;not null"`
}

// TableName returns the GORM table name.
func (SourceLinkRecord) TableName() string { return "source_links" }

// Key returns the audit entity id of the link, "type:id".
func (r SourceLinkRecord) Key() string {
	return SourceKey(r.SourceType, r.SourceID)
}

// SourceKey formats the audit entity id of a source link.
func SourceKey(sourceType, sourceID string) string {
	return sourceType + ":" + sourceID
}
