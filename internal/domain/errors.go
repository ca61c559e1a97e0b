package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies domain errors so handlers can map them to transport
// status codes without inspecting message text.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindPermission         ErrorKind = "permission"
	KindInvalidState       ErrorKind = "invalid_state"
	KindServiceUnavailable ErrorKind = "service_unavailable"
)

// Error is the typed error returned by domain and application code.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindPermission:
		return http.StatusForbidden
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates an error for malformed or out-of-range input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewNotFoundError creates an error for an absent entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError creates an error for a state conflict (duplicate booking,
// already-assigned, already-discounted, already-rated, already-cancelled).
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewPermissionError creates an error for a role not authorized to perform
// the attempted operation.
func NewPermissionError(message string) *Error {
	return &Error{Kind: KindPermission, Message: message}
}

// NewInvalidStateError creates an error for an illegal status transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewServiceUnavailableError creates an error for an unreachable, timed-out
// or failing external provider, wrapping the provider error as cause.
func NewServiceUnavailableError(message string, cause error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: message, cause: cause}
}

// AsError extracts a *Error from err, if err carries one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	de, ok := AsError(err)
	return ok && de.Kind == kind
}
