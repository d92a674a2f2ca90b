package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the pipeline.
var (
	// ErrEmptyDocument rejects ingest requests with no text.
	ErrEmptyDocument = errors.New("document text is empty")
	// ErrEmptyQuery rejects retrieval requests with no query text.
	ErrEmptyQuery = errors.New("query text is empty")
	// ErrGeneratorUnavailable marks a misconfigured or unreachable answer
	// generator. Distinct from the no-results outcome, which is not an error.
	ErrGeneratorUnavailable = errors.New("answer generator unavailable")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
