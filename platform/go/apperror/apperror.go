// Package apperror defines the platform error taxonomy shared by the request
// pipeline and the domain handlers, plus the JSON response envelope every
// route answers with.
package apperror

import (
	"errors"
	"net/http"
)

// Kind is the wire-level error code carried inside the response envelope.
type Kind string

const (
	Authentication Kind = "AUTHENTICATION_ERROR"
	Authorization  Kind = "AUTHORIZATION_ERROR"
	Validation     Kind = "VALIDATION_ERROR"
	NotFound       Kind = "NOT_FOUND_ERROR"
	Database       Kind = "DATABASE_ERROR"
	Service        Kind = "SERVICE_ERROR"
	Internal       Kind = "INTERNAL_SERVER_ERROR"
	Tenant         Kind = "TENANT_ERROR"
)

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case Authentication, Tenant:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case Validation, Service:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Database, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed failure every pipeline stage and service returns.
// Message is the only text that reaches the client; Err keeps the wrapped
// cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error keeping the underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// From extracts the *Error from an error chain, converting unknown errors to
// INTERNAL_SERVER_ERROR so handlers never leak internals.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: Internal, Message: "Internal server error", Err: err}
}

// KindOf reports the kind of an error chain, Internal when untyped.
func KindOf(err error) Kind {
	return From(err).Kind
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
