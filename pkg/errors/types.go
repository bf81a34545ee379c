package errors

import (
	"fmt"
	"maps"
	"net/http"
)

// Details keys shared across packages.
const (
	// DetailField names the field that failed validation or decoding.
	DetailField = "field"

	// DetailStatus holds the HTTP status code of an upstream response.
	DetailStatus = "status"

	// DetailBody holds the verbatim body of an upstream response.
	DetailBody = "body"
)

// Error represents a structured error with a code, message, and optional cause.
// Fields are not modified after creation; WithDetail and WithDetails return
// copies.
type Error struct {
	// Code is the machine-readable error code (e.g., "TOKEN_001").
	Code Code

	// Message is the human-readable error message. It must not contain
	// client secrets or raw bearer tokens.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional structured data such as the failing field
	// or the upstream status and body.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of this error, supporting
// errors.Unwrap() and errors.Is() from the standard library.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code a server embedding the bridge
// should answer with for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL", "CRED":
		return http.StatusBadRequest
	case "TOKEN":
		return http.StatusUnauthorized
	case "NF":
		return http.StatusNotFound
	case "DEC", "UPSTREAM":
		return http.StatusBadGateway
	case "UNAVAIL":
		return http.StatusServiceUnavailable
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a new Error with the specified details added.
func (e *Error) WithDetails(details map[string]any) *Error {
	newDetails := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(newDetails, e.Details)
	maps.Copy(newDetails, details)
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: newDetails,
	}
}

// WithDetail returns a new Error with a single detail key-value pair added.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// Field returns the DetailField detail, or "" when absent.
func (e *Error) Field() string {
	s, _ := e.Details[DetailField].(string)
	return s
}

// Format implements fmt.Formatter.
// Use %v for standard output, %+v for detailed output including the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
