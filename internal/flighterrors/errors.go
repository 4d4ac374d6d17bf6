// Package flighterrors is the index's typed error taxonomy: an AppError
// carrying a stable ErrorCode plus optional structured details, so callers
// can branch on failure kind without string matching.
package flighterrors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one of the index's error conditions.
type ErrorCode string

const (
	CodeOutOfDeviceMemory   ErrorCode = "OUT_OF_DEVICE_MEMORY"
	CodeMalformedBatch      ErrorCode = "MALFORMED_BATCH"
	CodeUnknownIdentifier   ErrorCode = "UNKNOWN_IDENTIFIER"
	CodeInvalidResultHandle ErrorCode = "INVALID_RESULT_HANDLE"
	CodeNotInitialized      ErrorCode = "NOT_INITIALIZED"

	// CodeInternal covers a recovered panic from an internal invariant
	// violation — not one of the boundary's documented failure modes, but
	// every public entry point must still turn it into a false/nil return
	// rather than crash the process.
	CodeInternal ErrorCode = "INTERNAL"
)

// AppError is the index's error type: a code, a human message, optional
// structured details, and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError with no details and no wrapped cause.
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WithDetails returns a copy of e with a detail key/value attached.
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &AppError{Code: e.Code, Message: e.Message, Details: details, Err: e.Err}
}

func NewOutOfDeviceMemoryError(message string) *AppError {
	return NewAppError(CodeOutOfDeviceMemory, message)
}

func NewMalformedBatchError(message string) *AppError {
	return NewAppError(CodeMalformedBatch, message)
}

func NewUnknownIdentifierError(id int64) *AppError {
	return NewAppError(CodeUnknownIdentifier, "identifier not present").WithDetails("id", id)
}

func NewInvalidResultHandleError(message string) *AppError {
	return NewAppError(CodeInvalidResultHandle, message)
}

func NewNotInitializedError(operation string) *AppError {
	return NewAppError(CodeNotInitialized, "index not initialized").WithDetails("operation", operation)
}

func NewInternalError(operation string, recovered interface{}) *AppError {
	return NewAppError(CodeInternal, "recovered from panic").
		WithDetails("operation", operation).
		WithDetails("panic", fmt.Sprintf("%v", recovered))
}

// Recover, deferred at the top of a public entry point, turns any panic
// during that call into a *target AppError with CodeInternal instead of
// letting it crash the process — the Go equivalent of the original's
// `try { ... } catch (...) { return false; }` around every exported
// operation. No-op if nothing panicked.
func Recover(target *error, operation string) {
	if r := recover(); r != nil {
		*target = NewInternalError(operation, r)
	}
}

func codeIs(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsOutOfDeviceMemory(err error) bool   { return codeIs(err, CodeOutOfDeviceMemory) }
func IsMalformedBatch(err error) bool      { return codeIs(err, CodeMalformedBatch) }
func IsUnknownIdentifier(err error) bool   { return codeIs(err, CodeUnknownIdentifier) }
func IsInvalidResultHandle(err error) bool { return codeIs(err, CodeInvalidResultHandle) }
func IsNotInitialized(err error) bool      { return codeIs(err, CodeNotInitialized) }
func IsInternal(err error) bool            { return codeIs(err, CodeInternal) }
