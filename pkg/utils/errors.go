package utils

import (
	"errors"
	"fmt"
	"runtime"
)

// AppError represents an application error with context
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new application error
func NewAppError(code, message string, details ...string) *AppError {
	_, file, line, _ := runtime.Caller(1)

	err := &AppError{
		Code:    code,
		Message: message,
		File:    file,
		Line:    line,
	}

	if len(details) > 0 {
		err.Details = details[0]
	}

	return err
}

// WithStackTrace adds stack trace to the error
func (e *AppError) WithStackTrace() *AppError {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// Error codes form a closed taxonomy; every failure the relay can hit maps
// to exactly one code, and the poll driver keys its recovery path off it.
const (
	ErrCodeConnection       = "CONNECTION_ERROR"
	ErrCodeRangeUnavailable = "RANGE_UNAVAILABLE"
	ErrCodeDatabase         = "DATABASE_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeActuator         = "ACTUATOR_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
)

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsConnectionError reports whether err is an infrastructure-level
// connectivity failure (node unreachable, timeout).
func IsConnectionError(err error) bool {
	return HasCode(err, ErrCodeConnection)
}

// IsRangeUnavailable reports whether err indicates the requested block range
// could not be served, usually because of a reorg at the boundary.
func IsRangeUnavailable(err error) bool {
	return HasCode(err, ErrCodeRangeUnavailable)
}

// IsDatabaseError reports whether err is a storage failure.
func IsDatabaseError(err error) bool {
	return HasCode(err, ErrCodeDatabase)
}

// IsValidationError reports whether err is a per-event data failure.
func IsValidationError(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

// IsActuatorError reports whether err is a downstream dispatch failure.
func IsActuatorError(err error) bool {
	return HasCode(err, ErrCodeActuator)
}

// IsInfrastructureError reports whether err should abandon the current cycle
// without advancing the checkpoint.
func IsInfrastructureError(err error) bool {
	return IsConnectionError(err) || IsDatabaseError(err)
}
