// Package apierr names the error taxonomy the HTTP surface maps to status
// codes: ClientInputError, AuthError, NotFound, UpstreamError, InternalError.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the five error categories the orchestrator raises.
type Kind string

// the five kinds core components may raise
const (
	KindClientInput Kind = "client_input"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindUpstream    Kind = "upstream"
	KindInternal    Kind = "internal"
)

// Error is a typed error carrying enough information for the HTTP surface
// to pick a status code without inspecting message text.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for this error's kind. AuthError
// normally maps to 401; callers that need 403 (public-photo disabled)
// construct Forbidden instead.
func (e *Error) Status() int {
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClientInput wraps err as a ClientInputError.
func ClientInput(err error) *Error { return &Error{Kind: KindClientInput, Err: err} }

// ClientInputf formats a ClientInputError.
func ClientInputf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindClientInput, Err: fmt.Errorf(format, args...)}
}

// Auth wraps err as an AuthError (401).
func Auth(err error) *Error { return &Error{Kind: KindAuth, Err: err} }

// Forbidden is an AuthError that the HTTP surface renders as 403 instead
// of 401 — used only for the disabled public-photo endpoint.
type Forbidden struct{ Err error }

func (e *Forbidden) Error() string { return e.Err.Error() }
func (e *Forbidden) Unwrap() error { return e.Err }

// NotFound wraps err as a NotFound error (404).
func NotFound(err error) *Error { return &Error{Kind: KindNotFound, Err: err} }

// Upstream wraps err as an UpstreamError (502).
func Upstream(err error) *Error { return &Error{Kind: KindUpstream, Err: err} }

// Internal wraps err as an InternalError (500).
func Internal(err error) *Error { return &Error{Kind: KindInternal, Err: err} }

// StatusFor maps any error to the HTTP status code the surface should
// return, defaulting to 500 for errors that are not one of our kinds.
func StatusFor(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status()
	}
	var forbidden *Forbidden
	if errors.As(err, &forbidden) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
