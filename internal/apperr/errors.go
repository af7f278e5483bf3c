// Package apperr defines the error taxonomy shared by services, repositories
// and handlers. Services return these typed errors; the HTTP layer translates
// them into status codes in exactly one place. This keeps business-rule
// checks (state machine legality, uniqueness, ownership) out of the handlers
// and lets tests assert on error kind instead of message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and logging.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindInvalidState
	KindConflict
	KindInvalidSignature
	KindUpstream
	KindInternal
)

// Error is a classified application error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to the status code the handlers respond with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation reports malformed or missing input.
func Validation(message string) *Error { return newError(KindValidation, message) }

// Validationf is Validation with formatting.
func Validationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

// Authentication reports missing or invalid credentials.
func Authentication(message string) *Error { return newError(KindAuthentication, message) }

// Authorization reports an authenticated caller without permission.
func Authorization(message string) *Error { return newError(KindAuthorization, message) }

// NotFound reports an absent entity. Owner-scoped lookups return this for
// "exists but not yours" as well, so existence is never leaked.
func NotFound(message string) *Error { return newError(KindNotFound, message) }

// NotFoundf is NotFound with formatting.
func NotFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, fmt.Sprintf(format, args...))
}

// InvalidState reports an operation illegal for the current lifecycle state.
func InvalidState(message string) *Error { return newError(KindInvalidState, message) }

// InvalidStatef is InvalidState with formatting.
func InvalidStatef(format string, args ...interface{}) *Error {
	return newError(KindInvalidState, fmt.Sprintf(format, args...))
}

// Conflict reports a duplicate where at most one is allowed.
func Conflict(message string) *Error { return newError(KindConflict, message) }

// InvalidSignature reports a payment callback that failed verification.
func InvalidSignature(message string) *Error { return newError(KindInvalidSignature, message) }

// Upstream reports a payment-gateway (or other collaborator) failure.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: cause}
}

// Internal wraps an unexpected error.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// KindOf extracts the Kind from err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
