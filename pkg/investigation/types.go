// Package investigation implements the defect-investigation core: projects,
// the source ledger that enforces single ownership of evidence records, the
// binding service that ties them together, and read-side queries.
//
// Every state change is written together with its audit event in one
// transaction. The caller role is passed explicitly into each operation.
package investigation

import (
	"time"
)

// Status is a project lifecycle state.
type Status string

const (
	StatusReady       Status = "Ready"
	StatusActive      Status = "Active"
	StatusContainment Status = "Containment"
	StatusClosed      Status = "Closed"
)

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusReady, StatusActive, StatusContainment, StatusClosed}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusReady, StatusActive, StatusContainment, StatusClosed:
		return true
	}
	return false
}

const (
	// ProjectIDPrefix is the fixed prefix of generated project identifiers.
	ProjectIDPrefix = "ACD"
	// DefaultSeverity is stored when the caller supplies none.
	DefaultSeverity = 3
	// CoverageStep is added to the coverage ratio on every successful bind.
	CoverageStep = 0.02
	// CoverageBaseline is the starting ratio of a project created with an inline source.
	CoverageBaseline = 0.2
	// CoverageMax clamps the coverage ratio.
	CoverageMax = 1.0
)

// SourceRef identifies an upstream evidence record.
type SourceRef struct {
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type"`
}

// SourceLink is the API view of a ledger entry.
type SourceLink struct {
	SourceID       string    `json:"source_id"`
	SourceType     string    `json:"source_type"`
	OwnerProjectID string    `json:"project_id"`
	LinkedBy       string    `json:"linked_by,omitempty"`
	LinkedAt       time.Time `json:"linked_at"`
}

// Project is the API view of a project. AgeDays is derived when the view is built.
type Project struct {
	ProjectID     string      `json:"project_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Market        string      `json:"market"`
	Region        string      `json:"region"`
	Model         string      `json:"model"`
	Platform      string      `json:"platform"`
	PartNo        string      `json:"part_no"`
	VIN           string      `json:"vin"`
	SymptomCode   string      `json:"symptom_code"`
	Severity      int         `json:"severity"`
	Status        Status      `json:"status"`
	Labels        []string    `json:"labels"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	AgeDays       int         `json:"age_days"`
	CoverageRatio float64     `json:"bin_coverage_ratio"`
	Sources       []SourceRef `json:"sources"`
}

// BindOutcome is the result of a ledger bind.
type BindOutcome string

const (
	OutcomeCreated    BindOutcome = "created"
	OutcomeReaffirmed BindOutcome = "reaffirmed"
	OutcomeConflict   BindOutcome = "conflict"
)

// CreateProjectInput carries the caller-supplied fields of a new project.
// SourceID and SourceType optionally attach an initial source.
type CreateProjectInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Market      string   `json:"market"`
	Region      string   `json:"region"`
	Model       string   `json:"model"`
	Platform    string   `json:"platform"`
	PartNo      string   `json:"part_no"`
	VIN         string   `json:"vin"`
	SymptomCode string   `json:"symptom_code"`
	Severity    *int     `json:"severity,omitempty"`
	Labels      []string `json:"labels"`
	SourceID    string   `json:"source_id"`
	SourceType  string   `json:"source_type"`
}

// BindInput names the source to attach and the target project.
type BindInput struct {
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type"`
	ProjectID  string `json:"project_id"`
}

// BindResult is returned by a successful bind.
type BindResult struct {
	Project *Project    `json:"project"`
	Outcome BindOutcome `json:"outcome"`
}

// ProjectFilter narrows project listings. Status, Model and Market match
// exactly; Query is a case-insensitive substring over identifier, VIN,
// part number and title.
type ProjectFilter struct {
	Query  string
	Status string
	Model  string
	Market string
}
