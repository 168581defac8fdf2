// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies engine errors so the transport layer can pick an HTTP
// status without inspecting error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindInvalidInput
	KindRateLimited
	KindStore
)

// Error is the engine's typed error. Details carries extra structure for the
// response body (e.g. the existing status on a duplicate match proposal).
type Error struct {
	Kind    Kind
	Msg     string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two engine errors by Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is checks in services and tests.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrConflict     = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrRateLimited  = &Error{Kind: KindRateLimited, Msg: "rate limited"}
	ErrStore        = &Error{Kind: KindStore, Msg: "store error"}
)

func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }
func InvalidInput(msg string) error { return &Error{Kind: KindInvalidInput, Msg: msg} }
func RateLimited(msg string) error  { return &Error{Kind: KindRateLimited, Msg: msg} }

// Conflict builds a conflict error carrying extra detail fields.
func Conflict(msg string, details map[string]any) error {
	return &Error{Kind: KindConflict, Msg: msg, Details: details}
}

// Store wraps an infrastructure failure. Validation errors pass through
// unchanged so services can wrap repo calls blindly.
func Store(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStore, Msg: "store error", cause: err}
}

// HTTPStatus maps an engine error onto an HTTP status code.
// Keeps handler code clean by centralizing error mapping.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Details extracts the detail map from an engine error, if any.
func Details(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
