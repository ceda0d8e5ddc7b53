package state

import (
	"errors"
	"fmt"
)

// Error represents a soft failure in the state core.
//
// All kinds are non-fatal: the failing operation is logged and dropped (or
// degraded) without corrupting the in-memory tree. Callers that care about
// the category use the Is* helpers.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes state errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates a rejected input: a non-mapping write
	// payload or a cart item without a product id. The operation is dropped
	// with no state mutation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodePersistence indicates the durable store was unavailable or
	// full. In-memory state is unaffected and stays authoritative for the
	// session.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeParse indicates a corrupt persisted record. Treated as a cache
	// miss, falling through to a freshly constructed default tree.
	ErrCodeParse ErrorCode = "PARSE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodeValidation
}

// IsPersistence reports whether err is a persistence error.
func IsPersistence(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == ErrCodePersistence
}

func newValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

func newPersistenceError(msg string, err error) *Error {
	return &Error{Code: ErrCodePersistence, Message: msg, Err: err}
}
