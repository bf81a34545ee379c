package errors

import (
	"context"
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
// If err is nil, Wrap returns nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new general validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new general validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// InvalidField creates a validation error for a single named field. The
// field name is recorded under DetailField.
//
// Example:
//
//	return errors.InvalidField(errors.CodeValidationFormat, "sub", "must be a UUID")
func InvalidField(code Code, field, reason string) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("field %q %s", field, reason),
		Details: map[string]any{DetailField: field},
	}
}

// MalformedToken creates a token error. When cause is a validation error
// carrying a field, the field is copied onto the token error.
func MalformedToken(cause error, message string) *Error {
	e := &Error{
		Code:    CodeMalformedToken,
		Message: message,
		Cause:   cause,
	}
	if inner, ok := AsError(cause); ok && inner.Field() != "" {
		e.Details = map[string]any{DetailField: inner.Field()}
	}
	return e
}

// Upstream creates an error for an unexpected provider response. The status
// and verbatim body are recorded under DetailStatus and DetailBody.
//
// Example:
//
//	err := errors.Upstream(errors.CodeTokenRequestFailed, resp.StatusCode, body,
//	    "keycloak token request failed")
func Upstream(code Code, status int, body, message string) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("%s with status %d: %s", message, status, body),
		Details: map[string]any{
			DetailStatus: status,
			DetailBody:   body,
		},
	}
}

// Transport classifies a transport-level failure. Deadline errors become
// CodeTimeoutDependency, everything else CodeUnavailableDependency.
func Transport(err error, message string) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeoutDependency, message)
	}
	return Wrap(err, CodeUnavailableDependency, message)
}

// NotFound creates a new not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a new not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Internal creates a new internal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf creates a new internal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable creates a new unavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout creates a new timeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError converts a standard error to an Error.
// If the error chain already contains an *Error, that error is returned.
// Otherwise the error is wrapped as an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
