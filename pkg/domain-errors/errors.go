// Package domainerrors provides coded errors shared by services and transport.
// Services attach a Code when translating infrastructure failures; the HTTP
// layer maps codes to status codes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and retry decisions.
type Code string

const (
	// CodeValidation marks client input that fails request validation.
	CodeValidation Code = "validation_failed"
	// CodeBadRequest marks malformed request bodies.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks lookups for entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks writes rejected by a uniqueness guarantee.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks upstream collaborators that failed or timed out.
	// Callers may retry.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected failures. Callers may retry.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Message returns the caller-safe message of the outermost coded error, or a
// generic fallback when the error carries no code.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status. Unknown codes map to 500 so a
// missing mapping never leaks a success status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf resolves the HTTP status for an arbitrary error.
func StatusOf(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return ToHTTPStatus(de.Code)
	}
	return http.StatusInternalServerError
}
