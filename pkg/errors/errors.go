// Package errors provides the structured error type shared by every package
// of the Keycloak bridge. Each failure carries a machine-readable code, a
// human-readable message, an optional cause, and optional structured details
// such as the offending field or the upstream HTTP status.
//
// # Error Categories
//
//   - Validation errors: a field of a DTO or provider response is invalid
//   - Decoding errors: a provider response or cached payload is not valid JSON
//   - Token errors: a bearer token is structurally malformed
//   - Upstream errors: the identity provider answered with an unexpected status
//   - Credential errors: a pre-hashed password cannot be encoded
//   - Mapping errors: no mapper (or more than one, in strict mode) supports a user
//   - NotFound errors: a user that should exist could not be located
//   - Internal, Unavailable and Timeout errors: cache or transport failures
//
// # Error Codes
//
// Codes follow the pattern CATEGORY_XXX, for example "TOKEN_001" or
// "UPSTREAM_002". Codes are stable once assigned.
//
// # Usage
//
//	tok, err := token.Decode(raw)
//	if errors.IsMalformedToken(err) {
//	    // reject the cached value and refetch
//	}
//
//	if status, ok := errors.UpstreamStatus(err); ok && status == http.StatusConflict {
//	    // user already exists
//	}
package errors
