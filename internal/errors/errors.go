package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a category of failure.
type ErrorCode string

const (
	ErrUnknown  ErrorCode = "UNKNOWN"
	ErrInternal ErrorCode = "INTERNAL"

	// Filesystem
	ErrIO          ErrorCode = "IO"
	ErrArchiveRead ErrorCode = "ARCHIVE_READ"

	// Configuration
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Reference catalogs
	ErrCatalogParse ErrorCode = "CATALOG_PARSE"
	ErrCatalogName  ErrorCode = "CATALOG_NAME"

	// Scripts
	ErrScriptLoad ErrorCode = "SCRIPT_LOAD"
	ErrEngine     ErrorCode = "ENGINE"

	// Scan
	ErrUnknownSystem ErrorCode = "UNKNOWN_SYSTEM"
	ErrBrokenPipe    ErrorCode = "BROKEN_PIPE"
)

// RomlintError is a structured error carrying a stable code.
type RomlintError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *RomlintError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

// Unwrap implements the errors.Unwrap interface
func (e *RomlintError) Unwrap() error {
	return e.Wrapped
}

// Is matches any RomlintError with the same code.
func (e *RomlintError) Is(target error) bool {
	var targetErr *RomlintError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new RomlintError with the given code and message
func New(code ErrorCode, message string) *RomlintError {
	return &RomlintError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new RomlintError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RomlintError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *RomlintError {
	if err == nil {
		return nil
	}
	return &RomlintError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *RomlintError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail adds a detail to the error
func (e *RomlintError) WithDetail(key string, value interface{}) *RomlintError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode reports whether any error in err's chain has the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var rerr *RomlintError
	for err != nil {
		if errors.As(err, &rerr) {
			if rerr.Code == code {
				return true
			}
			err = rerr.Wrapped
			continue
		}
		return false
	}
	return false
}

// GetErrorCode returns the outermost error code, or ErrUnknown.
func GetErrorCode(err error) ErrorCode {
	var rerr *RomlintError
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details of the outermost RomlintError.
func GetErrorDetails(err error) map[string]interface{} {
	var rerr *RomlintError
	if errors.As(err, &rerr) {
		return rerr.Details
	}
	return nil
}

// IO tags an I/O failure with the path it happened on.
func IO(err error, path string) *RomlintError {
	if err == nil {
		return nil
	}
	return Wrapf(err, ErrIO, "error accessing %s", path).WithDetail("path", path)
}
