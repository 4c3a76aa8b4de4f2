// Package social defines the domain error taxonomy shared by the
// repositories and handlers.
package social

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeUpstream     Code = "upstream_failure"
	CodeInternal     Code = "internal"
)

// Error carries a taxonomy code alongside a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure from an external collaborator (blob store,
// graph store connectivity) so callers can surface it as retryable.
func Upstream(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeUpstream, Message: fmt.Sprintf(format, args...), cause: cause}
}

func Internal(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

func statusCode(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError maps a domain error onto the platform HTTP error type.
// Unknown errors become opaque 500s.
func ToHTTPError(err error) *httperror.HTTPError {
	var se *Error
	if errors.As(err, &se) {
		return httperror.NewHTTPError(statusCode(se.Code), se.Message).AddMetaValue("code", string(se.Code))
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func is(err error, code Code) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}

func IsNotFound(err error) bool     { return is(err, CodeNotFound) }
func IsConflict(err error) bool     { return is(err, CodeConflict) }
func IsUnauthorized(err error) bool { return is(err, CodeUnauthorized) }
func IsUpstream(err error) bool     { return is(err, CodeUpstream) }
