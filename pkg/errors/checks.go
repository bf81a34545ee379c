package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error, traversing the chain
// with errors.As.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error, or "" when the error is nil
// or not an *Error.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks if an error has the specified error code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation checks if the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	return hasCategory(err, "VAL")
}

// IsCredential checks if the error is a credential encoding error (CRED_xxx).
func IsCredential(err error) bool {
	return hasCategory(err, "CRED")
}

// IsMalformedToken checks if the error is a token error (TOKEN_xxx).
func IsMalformedToken(err error) bool {
	return hasCategory(err, "TOKEN")
}

// IsNotFound checks if the error is a not found error (NF_xxx).
func IsNotFound(err error) bool {
	return hasCategory(err, "NF")
}

// IsMapping checks if the error is a mapper resolution error (MAP_xxx).
func IsMapping(err error) bool {
	return hasCategory(err, "MAP")
}

// IsInternal checks if the error is an internal error (INT_xxx).
func IsInternal(err error) bool {
	return hasCategory(err, "INT")
}

// IsDecoding checks if the error is a decoding error (DEC_xxx).
func IsDecoding(err error) bool {
	return hasCategory(err, "DEC")
}

// IsUpstream checks if the error reports an unexpected provider response
// (UPSTREAM_xxx).
func IsUpstream(err error) bool {
	return hasCategory(err, "UPSTREAM")
}

// IsUnavailable checks if the error is an unavailable error (UNAVAIL_xxx).
func IsUnavailable(err error) bool {
	return hasCategory(err, "UNAVAIL")
}

// IsTimeout checks if the error is a timeout error (TIMEOUT_xxx).
func IsTimeout(err error) bool {
	return hasCategory(err, "TIMEOUT")
}

// IsRetryable checks if the error is potentially retryable.
// Timeout and unavailable errors are retryable; so are upstream errors
// whose recorded status is 502, 503 or 504.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    // implement retry with backoff
//	}
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	case "UPSTREAM":
		status, _ := UpstreamStatus(e)
		return status == 502 || status == 503 || status == 504
	default:
		return false
	}
}

// UpstreamStatus returns the HTTP status recorded on an upstream error.
func UpstreamStatus(err error) (int, bool) {
	e, ok := AsError(err)
	if !ok {
		return 0, false
	}
	status, ok := e.Details[DetailStatus].(int)
	return status, ok
}
