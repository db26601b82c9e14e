// Package apperr defines the error kinds returned across the service boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a stable error category that callers can branch on.
type Kind int

const (
	Internal Kind = iota
	Unauthorized
	Forbidden
	NotFound
	Conflict
	Invalid
)

var kindInfo = map[Kind]struct {
	code   string
	status int
}{
	Internal:     {"internal_server_error", http.StatusInternalServerError},
	Unauthorized: {"unauthorized", http.StatusUnauthorized},
	Forbidden:    {"forbidden", http.StatusForbidden},
	NotFound:     {"not_found", http.StatusNotFound},
	Conflict:     {"conflict", http.StatusConflict},
	Invalid:      {"invalid_request", http.StatusBadRequest},
}

// String returns the wire code of the kind.
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[Internal].code
}

// HTTPStatus maps the kind to a response status.
func (k Kind) HTTPStatus() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Error is a typed failure. Message is safe to show to clients; Err is the
// underlying cause and is only ever logged.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message, so package-level
// *Error values work as sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind carrying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
