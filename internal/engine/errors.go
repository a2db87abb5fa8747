package engine

import (
	"errors"
	"fmt"
)

// LoadError represents a load that did not reach AllDone.
//
// LoadError includes structured fields for diagnostics.
type LoadError struct {
	// Code identifies the error category.
	Code LoadErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the load.
	RunID string

	// Entity names the entity that failed first, if any.
	Entity string

	// Err is the underlying cause.
	Err error
}

// LoadErrorCode categorizes load errors.
type LoadErrorCode string

const (
	// ErrCodeMalformedInput indicates the genesis document lacks a required shape.
	ErrCodeMalformedInput LoadErrorCode = "MALFORMED_INPUT"

	// ErrCodeEntityFailed indicates an entity pipeline failed.
	ErrCodeEntityFailed LoadErrorCode = "ENTITY_FAILED"

	// ErrCodeSchemaFailed indicates a target table could not be ensured.
	ErrCodeSchemaFailed LoadErrorCode = "SCHEMA_FAILED"

	// ErrCodeCanceled indicates the job was canceled or timed out.
	ErrCodeCanceled LoadErrorCode = "CANCELED"
)

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.RunID != "" && e.Entity != "" {
		return fmt.Sprintf("%s: %s (run=%s, entity=%s)", e.Code, e.Message, e.RunID, e.Entity)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsMalformedInput returns true if err is a load aborted by a malformed
// document. Uses errors.As to handle wrapped errors.
func IsMalformedInput(err error) bool {
	return hasCode(err, ErrCodeMalformedInput)
}

// IsEntityFailure returns true if err is a load stopped by a failed entity.
func IsEntityFailure(err error) bool {
	return hasCode(err, ErrCodeEntityFailed)
}

// IsCanceled returns true if err is a load aborted by cancellation.
func IsCanceled(err error) bool {
	return hasCode(err, ErrCodeCanceled)
}

func hasCode(err error, code LoadErrorCode) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
