// Package apperr defines the failure kinds that cross component boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller
type Kind string

const (
	Unauthenticated    Kind = "UNAUTHENTICATED"
	Forbidden          Kind = "FORBIDDEN"
	NotFound           Kind = "NOT_FOUND"
	Validation         Kind = "VALIDATION_ERROR"
	Conflict           Kind = "CONFLICT"
	RateLimited        Kind = "RATE_LIMITED"
	StorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	Unknown            Kind = "UNKNOWN"
)

// Error is an expected failure with a message that is safe to show to the user.
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

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "User not logged in"
	}
	return New(Unauthenticated, message)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Invalid(message string) *Error {
	return New(Validation, message)
}

// Unavailable marks a persistence failure. The cause is kept for logs only.
func Unavailable(err error) *Error {
	return Wrap(StorageUnavailable, "Storage is unavailable, please try again", err)
}

// KindOf returns the kind of err, or Unknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is an *Error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err. Errors without a kind get a
// generic message so internal details never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Unknown {
		return e.Message
	}
	return "Unknown error occurred"
}
