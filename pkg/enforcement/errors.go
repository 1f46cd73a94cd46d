package enforcement

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for retry and propagation logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a collaborator failure that may succeed
	// on retry. Examples: store timeouts, connection errors.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: malformed configuration rows, missing referenced entities
	// on paths where a decision object cannot absorb the condition.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error is a classified error with context. Decision operations never
// return business conditions (not found, unmet prerequisite, failed
// inspection) as errors; those are absorbed into the returned Decision.
// Only collaborator and internal failures surface here.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional machine-readable code.
	Code string `json:"code,omitempty"`

	// Entity is the work order, operation, or rule ID involved, if any.
	Entity string `json:"entity,omitempty"`

	// Operation is the decision operation being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("[%s] %s (entity=%s): %s", e.Class, e.Message, e.Entity, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, err error) *Error {
	return &Error{Class: ErrorClassPermanent, Message: message, Err: err}
}

// NewNotFoundError creates a permanent error carrying ErrCodeNotFound.
// Store implementations return it so decision operations can translate a
// missing entity into a well-formed rejection instead of a hard failure.
func NewNotFoundError(message string, entity string) *Error {
	return &Error{
		Class:   ErrorClassPermanent,
		Message: message,
		Code:    ErrCodeNotFound,
		Entity:  entity,
	}
}

// WithEntity adds entity context to an error.
func (e *Error) WithEntity(id string) *Error {
	e.Entity = id
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds a machine-readable code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNotFound
	}
	return false
}

// Common error codes.
const (
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeStoreFailed = "STORE_FAILED"
	ErrCodeInternal    = "INTERNAL_ERROR"
)
