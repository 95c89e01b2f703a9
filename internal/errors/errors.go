// Package errors provides coded error definitions for the pipeline.
package errors

import "fmt"

// ErrorCode identifies a failure category that front-ends can act on.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"

	// Extraction errors
	ErrExtractFailed ErrorCode = "EXTRACT_FAILED"
	ErrDecodeFailed  ErrorCode = "DECODE_FAILED"
	ErrNoGPSData     ErrorCode = "NO_GPS_DATA"

	// Store errors
	ErrRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrImportFailed   ErrorCode = "IMPORT_FAILED"

	// Export errors
	ErrExportFailed ErrorCode = "EXPORT_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
