package investigation

import (
	"fmt"
	"strings"
)

// Error codes carried by the typed errors in this package.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeSourceConflict   = "SOURCE_ALREADY_LINKED"
)

// ValidationError reports missing or malformed input. Nothing is written.
type ValidationError struct {
	Code    string   `json:"code"`
	Fields  []string `json:"fields,omitempty"`
	Message string   `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missingFields(fields []string) *ValidationError {
	return &ValidationError{
		Code:    CodeValidationFailed,
		Fields:  fields,
		Message: "Missing fields: " + strings.Join(fields, ", "),
	}
}

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{
		Code:    CodeValidationFailed,
		Fields:  []string{field},
		Message: msg,
	}
}

// NotFoundError reports an unknown project or source.
type NotFoundError struct {
	Code     string `json:"code"`
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func projectNotFound(id string) *NotFoundError {
	return &NotFoundError{Code: CodeNotFound, Resource: "project", ID: id}
}

// ConflictError reports a source already owned by a different project.
// ExistingProjectID names the current owner.
type ConflictError struct {
	Code              string `json:"code"`
	SourceID          string `json:"source_id"`
	SourceType        string `json:"source_type"`
	ExistingProjectID string `json:"existing_project_id"`
	Message           string `json:"error"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s owned by %s", e.Message, SourceKey(e.SourceType, e.SourceID), e.ExistingProjectID)
}

func sourceConflict(sourceID, sourceType, owner string) *ConflictError {
	return &ConflictError{
		Code:              CodeSourceConflict,
		SourceID:          sourceID,
		SourceType:        sourceType,
		ExistingProjectID: owner,
		Message:           "Source already linked",
	}
}
