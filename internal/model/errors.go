package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes graph store errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates an illegal argument, rejected before any SQL runs.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates an element id with no corresponding row.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConsistency indicates a broken internal invariant. Never retried.
	ErrCodeConsistency ErrorCode = "CONSISTENCY"

	// ErrCodeStore indicates a failure from the underlying database.
	// The enclosing transaction must be rolled back by the caller.
	ErrCodeStore ErrorCode = "STORE"
)

// Error is the single error type surfaced by the graph store.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failing operation, e.g. "load vertex".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a VALIDATION error.
func NewValidationError(op, message string) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Message: message}
}

// NewNotFoundError creates a NOT_FOUND error.
func NewNotFoundError(op, message string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Message: message}
}

// NewConsistencyError creates a CONSISTENCY error.
func NewConsistencyError(op, message string) *Error {
	return &Error{Code: ErrCodeConsistency, Op: op, Message: message}
}

// WrapStoreError wraps a database failure. A nil err returns nil.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Code: ErrCodeStore, Op: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or the empty
// code if there is none.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation returns true for VALIDATION errors, including wrapped ones.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound returns true for NOT_FOUND errors, including wrapped ones.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsConsistency returns true for CONSISTENCY errors, including wrapped ones.
func IsConsistency(err error) bool { return hasCode(err, ErrCodeConsistency) }

// IsStore returns true for STORE errors, including wrapped ones.
func IsStore(err error) bool { return hasCode(err, ErrCodeStore) }
