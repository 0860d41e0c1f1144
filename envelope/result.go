package envelope

import "errors"

// UnknownError is reported for failures that carry no usable message.
const UnknownError = "Unknown error occurred"

// Result holds either a response or an error message, never both. Callers check Error
// before trusting Response; a zero-valued Response with an empty Error is a valid result
// (for example an empty cart).
type Result[T any] struct {
	Response T
	Error    string
}

// Ok wraps a successful response
func Ok[T any](v T) Result[T] {
	return Result[T]{Response: v}
}

// Fail wraps an error message. An empty message becomes UnknownError.
func Fail[T any](message string) Result[T] {
	if message == "" {
		message = UnknownError
	}
	return Result[T]{Error: message}
}

// Failed reports whether the result carries an error
func (r Result[T]) Failed() bool {
	return r.Error != ""
}

// Unwrap converts the result to the usual Go pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.Failed() {
		var zero T
		return zero, errors.New(r.Error)
	}
	return r.Response, nil
}
