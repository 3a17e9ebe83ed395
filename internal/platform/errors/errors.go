// Package errors provides error types and utilities for noctua.
// It extends the standard errors package with additional context and wrapping capabilities.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios
var (
	// ErrRequestFailed indicates an HTTP request exhausted its retry budget
	ErrRequestFailed = errors.New("request failed")

	// ErrTimeout indicates an operation exceeded its time limit
	ErrTimeout = errors.New("operation timed out")

	// ErrRateLimit indicates a rate limit was exceeded
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrNoSnapshot indicates no usable snapshot exists at the given path
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrUnsafeTarget indicates the target resolves to a disallowed internal address
	ErrUnsafeTarget = errors.New("target resolves to internal address")

	// ErrMissingConfig indicates a required configuration field is absent
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionFailed indicates a connection could not be established
	ErrConnectionFailed = errors.New("connection failed")
)

// wrappedError wraps an error with additional context
type wrappedError struct {
	msg   string
	cause error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

// Wrap wraps an error with additional context message.
// If err is nil, Wrap returns nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: msg, cause: err}
}

// Wrapf wraps an error with a formatted context message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: fmt.Sprintf(format, args...), cause: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New creates a new error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns the string as a value that satisfies error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Join returns an error that wraps the given errors, discarding nil values.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsTimeout reports whether the error is a timeout error
func IsTimeout(err error) bool {
	return Is(err, ErrTimeout)
}

// IsRequestFailed reports whether the error is a retry-exhaustion error
func IsRequestFailed(err error) bool {
	return Is(err, ErrRequestFailed)
}

// IsNoSnapshot reports whether the error means a snapshot could not be loaded
func IsNoSnapshot(err error) bool {
	return Is(err, ErrNoSnapshot)
}

// IsUnsafeTarget reports whether the error is a safety-policy rejection
func IsUnsafeTarget(err error) bool {
	return Is(err, ErrUnsafeTarget)
}
