// Package errors provides centralized error definitions and classification
// helpers for the Icarus bus.
//
// The bus distinguishes four failure classes:
//
//   - Contention: a claim candidate was taken by another instance. Never
//     surfaced as an error; claim scans skip to the next candidate.
//   - Not found: operations against a vanished id no-op or return nil.
//   - Malformed record: a corrupt file found while scanning is skipped and
//     logged; the listing still completes.
//   - IO/resource failure: fatal to that single call and propagated.
//
// Only the last class reaches callers as a non-nil error under normal
// operation. Validation errors additionally reject malformed input before
// anything is written.
//
// Usage:
//
//	if err := q.Post(item); err != nil {
//	    var verr *errors.ValidationError
//	    if errors.As(err, &verr) { ... }
//	}
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for bus-level conditions.
var (
	// ErrNotInitialized indicates the bus root has no manifest. Operations
	// other than Initialize require an initialized bus.
	ErrNotInitialized = errors.New("bus is not initialized")

	// ErrAlreadyInitialized indicates Initialize was called on a bus root
	// that already carries a manifest.
	ErrAlreadyInitialized = errors.New("bus is already initialized")

	// ErrAlreadyClaimed indicates a withdraw attempt against work that has
	// already moved to the claimed store.
	ErrAlreadyClaimed = errors.New("work item is already claimed")
)

// NotFoundError indicates a referenced entity does not exist. Most bus
// operations treat missing entities as benign and return nil instead;
// this type exists for the few call sites (CLI, validation) that need
// to report the miss to a human.
type NotFoundError struct {
	Kind string // "work item", "instance", "request", "response"
	ID   string
}

// NewNotFoundError creates a NotFoundError for the given entity kind and id.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is reports whether target is also a NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ValidationError indicates invalid input that was rejected before any
// state changed.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Is reports whether target is also a ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// TimeoutError indicates an operation exceeded its deadline. The bus's only
// blocking primitive (waiting for an escalation response) reports timeout by
// returning nil, so TimeoutError appears only in tooling that chooses to
// surface the deadline to a human.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

// NewTimeoutError creates a TimeoutError for the given operation.
func NewTimeoutError(operation string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Timeout: timeout}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// Is reports whether target is also a TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsBenign reports whether err represents an expected condition (not found,
// timeout) rather than a real failure. Benign errors are safe to log at
// debug level and discard.
func IsBenign(err error) bool {
	return IsNotFound(err) || IsTimeout(err)
}
