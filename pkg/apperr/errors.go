// Package apperr defines the coded error type shared by the extractor,
// synthesizer, supervisor and upload pipeline.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Error represents a failure with enough context to act on it.
type Error struct {
	// Code identifies the error category
	Code Code

	// Message is the primary error message
	Message string

	// Context provides additional details
	Context map[string]interface{}

	// Cause is the underlying error (if any)
	Cause error

	// Suggestion provides actionable guidance for resolving the error
	Suggestion string
}

// Code identifies categories of errors
type Code string

const (
	// Input errors
	CodeParseError     Code = "PARSE_ERROR"
	CodeEmptyInput     Code = "EMPTY_INPUT"
	CodeInvalidUpload  Code = "INVALID_UPLOAD"
	CodeSynthesisError Code = "SYNTHESIS_FAILED"

	// Process lifecycle errors
	CodeProcessStartTimeout Code = "PROCESS_START_TIMEOUT"
	CodeProcessStartFailed  Code = "PROCESS_START_FAILED"
	CodeProcessStopTimeout  Code = "PROCESS_STOP_TIMEOUT"
	CodePortUnavailable     Code = "PORT_UNAVAILABLE"

	// Generated service errors
	CodeRuntimeInvocation Code = "RUNTIME_INVOCATION"

	// Admission errors
	CodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a new Error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithSuggestion adds an actionable suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ErrPortUnavailable creates an error for a port that is already bound
func ErrPortUnavailable(host string, port int) *Error {
	return Newf(CodePortUnavailable, "port %d on %s is already in use", port, host).
		WithContext("host", host).
		WithContext("port", port).
		WithSuggestion(fmt.Sprintf("Find the owner with: lsof -i :%d", port))
}

// ErrStartTimeout creates an error for a service that never became ready
func ErrStartTimeout(document string, timeout time.Duration, cause error) *Error {
	return New(CodeProcessStartTimeout, "service did not become ready before the deadline").
		WithContext("document", document).
		WithContext("timeout", timeout).
		WithCause(cause).
		WithSuggestion("Inspect the service log tail; compile errors in the uploaded source surface there")
}
