// Package pipelineerr defines the gateway's error taxonomy and its
// mapping onto HTTP status codes, threaded through the pipeline as
// explicit typed results rather than used for control flow.
package pipelineerr

import "net/http"

// Kind identifies one of the taxonomy's error classes.
type Kind string

const (
	AuthError           Kind = "auth_error"
	Forbidden           Kind = "forbidden"
	BadRequest          Kind = "bad_request"
	RateLimited         Kind = "rate_limited"
	InsufficientBalance Kind = "insufficient_balance"
	NotFound            Kind = "not_found"
	UpstreamError       Kind = "upstream_error"
	Cancelled           Kind = "cancelled"
	Internal            Kind = "internal"
)

// Error is a classified pipeline error carrying a human-readable
// message and the taxonomy kind it belongs to.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a classified error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	pe, ok := err.(*Error)
	return pe, ok
}

// StatusCode maps a Kind to the HTTP status defined in the external
// interfaces section of the spec.
func StatusCode(kind Kind) int {
	switch kind {
	case AuthError:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case InsufficientBalance:
		return http.StatusPaymentRequired
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	case UpstreamError, Internal:
		return http.StatusInternalServerError
	case Cancelled:
		return 499 // client closed request — nginx convention, no stdlib constant
	default:
		return http.StatusInternalServerError
	}
}
