// Package apperr defines the error taxonomy shared by every layer of the API.
// Errors carry a Kind which maps to a transport status through a lookup table;
// handlers and middleware never inspect concrete error types beyond this one.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for transport mapping and logging.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindAuthorization  Kind = "AUTHORIZATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND_ERROR"
	KindConflict       Kind = "CONFLICT_ERROR"
	KindRateLimit      Kind = "RATE_LIMIT_ERROR"
	KindExternal       Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// kindStatus maps each kind to its HTTP status. Unlisted kinds resolve to 500.
var kindStatus = map[Kind]int{
	KindValidation:     http.StatusBadRequest,
	KindAuthentication: http.StatusUnauthorized,
	KindAuthorization:  http.StatusForbidden,
	KindNotFound:       http.StatusNotFound,
	KindConflict:       http.StatusConflict,
	KindRateLimit:      http.StatusTooManyRequests,
	KindExternal:       http.StatusBadGateway,
	KindInternal:       http.StatusInternalServerError,
}

// HTTPStatus returns the transport status for a kind.
func (k Kind) HTTPStatus() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Expected reports whether errors of this kind are routine operational
// outcomes that should be logged at warn level rather than error level.
func (k Kind) Expected() bool {
	switch k {
	case KindValidation, KindAuthentication, KindAuthorization, KindNotFound, KindConflict, KindRateLimit:
		return true
	}
	return false
}

// Error is the tagged error carried through the middleware chain.
type Error struct {
	Kind Kind
	// Code refines the kind for logging; defaults to the kind itself.
	// Authentication failures keep distinct codes (INVALID_TOKEN,
	// EXPIRED_TOKEN, PRINCIPAL_NOT_FOUND) while surfacing identically.
	Code    string
	Message string
	Details map[string]interface{}
	// RetryAfter is set on rate-limit errors.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the transport status for this error.
func (e *Error) HTTPStatus() int { return e.Kind.HTTPStatus() }

// WithDetails attaches a detail entry and returns the error for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: message, Err: err}
}

// Validation reports malformed or out-of-range input.
func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(message string) *Error {
	return newError(KindAuthentication, message, nil)
}

// InvalidToken reports a malformed or tampered credential.
func InvalidToken(err error) *Error {
	e := newError(KindAuthentication, "invalid credential", err)
	e.Code = "INVALID_TOKEN"
	return e
}

// ExpiredToken reports a well-formed credential past its expiry.
func ExpiredToken(err error) *Error {
	e := newError(KindAuthentication, "credential expired", err)
	e.Code = "EXPIRED_TOKEN"
	return e
}

// PrincipalNotFound reports a valid credential whose principal no longer
// exists. Surfaces as an authentication failure, never as not-found.
func PrincipalNotFound(id string) *Error {
	e := newError(KindAuthentication, "invalid credential", nil)
	e.Code = "PRINCIPAL_NOT_FOUND"
	return e.WithDetails("principal_id", id)
}

// Forbidden reports a valid principal lacking a required role.
func Forbidden(message string) *Error {
	return newError(KindAuthorization, message, nil)
}

// NotFound reports an absent entity.
func NotFound(entity, id string) *Error {
	e := newError(KindNotFound, fmt.Sprintf("%s not found", entity), nil)
	if id != "" {
		e.WithDetails("id", id)
	}
	return e
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return newError(KindConflict, message, nil)
}

// RateLimited reports an over-budget request with retry-after metadata.
func RateLimited(limit int, retryAfter time.Duration) *Error {
	e := newError(KindRateLimit, "rate limit exceeded", nil)
	e.RetryAfter = retryAfter
	return e.WithDetails("limit", limit)
}

// External reports a downstream dependency failure.
func External(service string, err error) *Error {
	e := newError(KindExternal, fmt.Sprintf("%s unavailable", service), err)
	return e.WithDetails("service", service)
}

// Internal wraps an unclassified failure.
func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// From extracts an *Error from err, wrapping unclassified errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
