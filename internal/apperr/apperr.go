// Package apperr defines the error taxonomy shared across the gateway.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of client-visible responses
// and transport-level behavior (close vs. reply).
type Kind int

const (
	// KindInvalidInput marks a shape or bound violation in a client request.
	KindInvalidInput Kind = iota
	// KindNotFound marks a reference to an unknown session or category.
	KindNotFound
	// KindQuotaExceeded marks a session-limit violation.
	KindQuotaExceeded
	// KindUnauthorized marks a failed identity resolution; closes the transport.
	KindUnauthorized
	// KindRateLimited marks a rejected request due to an empty token bucket.
	KindRateLimited
	// KindTransientStore marks a failed durable-store operation.
	KindTransientStore
	// KindFatal marks an uncaught top-level failure that should exit the process.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindUnauthorized:
		return "Unauthorized"
	case KindRateLimited:
		return "RateLimited"
	case KindTransientStore:
		return "TransientStore"
	case KindFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error is a typed application error carrying a Kind for dispatch at the
// connection boundary.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// New builds an *Error of the given kind with a message.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping an underlying cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindTransientStore for
// untyped errors surfacing from the store layer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransientStore
}

func InvalidInput(format string, args ...any) *Error {
	return Newf(KindInvalidInput, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

func QuotaExceeded(format string, args ...any) *Error {
	return Newf(KindQuotaExceeded, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return Newf(KindUnauthorized, format, args...)
}

func RateLimited(format string, args ...any) *Error {
	return Newf(KindRateLimited, format, args...)
}

func TransientStore(msg string, cause error) *Error {
	return Wrap(KindTransientStore, msg, cause)
}
