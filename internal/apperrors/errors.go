// Package apperrors defines the request-scoped error taxonomy. Every error a
// handler surfaces carries a Code; the HTTP layer maps codes to statuses in a
// single place so routes cannot disagree about transport semantics.
package apperrors

import (
	"errors"
	"fmt"
)

// Error is an application error with a classification code. Cause is kept for
// logs and debugging only and never rendered to clients.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with the given code and user-facing message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause for debugging while keeping the user-facing message.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) *Error { return New(CodeValidation, msg) }

// Unauthenticated always uses a generic message so the wire never
// distinguishes "wrong password" from "unknown email".
func Unauthenticated() *Error { return New(CodeUnauthenticated, "unauthorized") }

func Forbidden(msg string) *Error { return New(CodeForbidden, msg) }

func NotFound(msg string) *Error { return New(CodeNotFound, msg) }

func Conflict(msg string) *Error { return New(CodeConflict, msg) }

func RateLimited() *Error { return New(CodeRateLimited, "rate limit exceeded") }

// Upstream reports a provider failure; detail stays in Cause for logs.
func Upstream(msg string, cause error) *Error { return Wrap(CodeUpstream, msg, cause) }

// CodeOf extracts the classification of err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
