// Package domainerrors is the closed error taxonomy shared by every service.
//
// Each error carries a Code and a pre-sanitized Message. Messages are written by
// the service that raises the error and must never be built from caller input
// that may hold a raw identifier. Wrapped causes are kept for errors.Is/As
// inspection inside the process but are never rendered by transports.
package domainerrors

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies an error for transport mapping and metrics.
type Code string

const (
	// CodeInvalidInput marks malformed caller input (e.g. wrong VIN length).
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks transport-level decoding problems.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks missing or invalid caller credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound marks missing resources.
	CodeNotFound Code = "not_found"
	// CodeQuotaExceeded marks a per-user daily cap that has been reached.
	CodeQuotaExceeded Code = "quota_exceeded"
	// CodeCorrelationRisk marks a segment whose query density is too high.
	CodeCorrelationRisk Code = "correlation_risk"
	// CodeInvariantViolation marks a domain constructor rejecting its input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal is the generic, content-free failure surfaced for anything
	// unexpected, including hashing failures.
	CodeInternal Code = "internal_error"
)

// Error is the concrete domain error.
type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error with the given code and safe message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and safe message to an underlying cause.
// Callers must only wrap causes that are known not to contain identifiers.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// WithRetryAfter returns a copy of e carrying retry guidance.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	cp := *e
	if d < 0 {
		d = 0
	}
	cp.RetryAfter = d
	return &cp
}

// As extracts the domain error from err.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// CodeOf returns the code of err, or CodeInternal for anything that is not a
// domain error.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}
