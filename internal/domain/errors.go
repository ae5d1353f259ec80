package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the detection and classification pipeline. All of
// these except ErrPersistence are recovered locally: detectors and the
// orchestrator translate them into skipped records or terminal fallback
// classifications rather than aborting a batch run.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateCandidate indicates a candidate already exists for the
	// same (HAI type, event reference). Treated as an idempotent no-op.
	ErrDuplicateCandidate = errors.New("duplicate candidate")

	// ErrInsufficientDocumentation indicates no clinical text was found
	// for a candidate's window. Not a failure; it yields a terminal
	// low-confidence classification.
	ErrInsufficientDocumentation = errors.New("insufficient documentation")

	// ErrExtractionFailed indicates the fact extraction service timed out
	// or returned a malformed response. Retried, then degraded to
	// ErrInsufficientDocumentation handling.
	ErrExtractionFailed = errors.New("fact extraction failed")

	// ErrMalformedRecord indicates a raw source event could not be parsed
	// into detector inputs. Logged and skipped.
	ErrMalformedRecord = errors.New("malformed source record")

	// ErrPersistence indicates a durable write failed. This is the one
	// class allowed to abort the current candidate's processing.
	ErrPersistence = errors.New("persistence failure")

	// ErrStatusRegression indicates an attempted lifecycle transition
	// that would move a candidate backwards.
	ErrStatusRegression = errors.New("candidate status regression")
)

// ValidationError reports a rejected input at the review boundary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
