// Package apperr defines the error taxonomy shared by the service, API and MCP layers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrAmbiguousRenderState = errors.New("ambiguous render state")
)

// Violation is a single field-level schema problem.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violation found in a rejected document.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError with a single violation.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Violations: []Violation{{Field: field, Message: msg}}}
}

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// Conflict wraps ErrConflict with the kind and id of the clashing entity.
func Conflict(kind, id string) error {
	return fmt.Errorf("%s %q already exists: %w", kind, id, ErrConflict)
}

// Warning kinds. Warnings describe references that were dropped while
// deriving effective state; they are reported, never returned as errors.
const (
	WarnMissingFile  = "missing_file"
	WarnUnknownGroup = "unknown_group"
	WarnUnknownTab   = "unknown_tab"
	WarnBrokenTab    = "broken_tab"
	WarnUnknownCard  = "unknown_card"
	WarnBadManifest  = "malformed_manifest"
)

// Warning is a dangling reference that was reconciled automatically.
type Warning struct {
	Kind    string `json:"kind"`
	Ref     string `json:"ref"`
	Message string `json:"message"`
}
