// Package apperr classifies the failures the service can surface: each
// error carries a kind that handlers map to an HTTP status, and an internal
// cause that is logged but never echoed to the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a failure class.
type Kind string

const (
	// KindConfiguration is fatal at startup; the process must not serve traffic.
	KindConfiguration Kind = "configuration"
	// KindValidation is missing or malformed request input.
	KindValidation Kind = "validation"
	// KindUpstream is the provider or image host being unreachable or erroring.
	KindUpstream Kind = "upstream"
	// KindProtocol is an upstream response missing an expected field.
	KindProtocol Kind = "protocol"
	// KindStorage is an object-store transport or permission failure.
	KindStorage Kind = "storage"
	// KindAutomation is a scripted browser step failure.
	KindAutomation Kind = "automation"
)

// HTTPStatus maps a kind to the status surfaced to callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAutomation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message describes the failing step for the
// logs; Err is the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
