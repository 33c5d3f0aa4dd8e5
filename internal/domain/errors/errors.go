// Package errors provides domain-specific errors for the taskwatch client.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskIDRequired     = errors.New("task ID required")
	ErrEmptyPatch         = errors.New("update carries no fields")
	ErrRetriesExhausted   = errors.New("reconnect retries exhausted")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrAPIUnreachable     = errors.New("task API unreachable")
	ErrCacheClosed        = errors.New("cache store closed")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeTransport     ErrorCode = "TRANSPORT"
	CodeDecode        ErrorCode = "DECODE"
	CodeAPI           ErrorCode = "API"
	CodeConfiguration ErrorCode = "CONFIG"
)

// TaskwatchError wraps errors with additional context for debugging and handling.
type TaskwatchError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *TaskwatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *TaskwatchError) Unwrap() error {
	return e.Cause
}

// NewError creates a new TaskwatchError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *TaskwatchError {
	return &TaskwatchError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
// This allows for method chaining when adding multiple context values.
func WithContext(err *TaskwatchError, key string, value interface{}) *TaskwatchError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// Is reports whether err matches target using errors.Is semantics.
// This is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
// This is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf returns the ErrorCode carried by the first TaskwatchError in
// err's chain, or an empty code when the chain carries none.
func CodeOf(err error) ErrorCode {
	var te *TaskwatchError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
