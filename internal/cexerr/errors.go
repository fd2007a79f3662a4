package cexerr

import (
	"fmt"
	"strconv"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message (for logs/diagnostics)
	Metadata map[string]string // Additional context (line numbers, variable names)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if line, ok := e.Metadata["line"]; ok {
		return fmt.Sprintf("%s: line %s: %s", e.Code, line, e.Message)
	}
	if variable, ok := e.Metadata["variable"]; ok {
		return fmt.Sprintf("%s: %s: %s", e.Code, variable, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Line returns the trace line number attached to the error, or 0.
func (e *Error) Line() int {
	n, err := strconv.Atoi(e.Metadata["line"])
	if err != nil {
		return 0
	}
	return n
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithMetadata creates a domain error with structured metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AtLine creates a domain error pinned to a trace line number.
func AtLine(code Code, line int, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: map[string]string{"line": strconv.Itoa(line)},
	}
}

// ForVariable creates a local domain error attributed to one variable.
func ForVariable(code Code, variable string, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: map[string]string{"variable": variable},
	}
}
