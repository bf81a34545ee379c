package errors

// Code represents a machine-readable error code. Codes follow the pattern
// CATEGORY_XXX where CATEGORY is a short identifier (e.g., VAL, TOKEN,
// UPSTREAM) and XXX is a three-digit numeric code.
type Code string

// Error code categories:
//
//	VAL_xxx      - Validation errors (400 Bad Request)
//	CRED_xxx     - Credential encoding errors (400 Bad Request)
//	TOKEN_xxx    - Malformed bearer tokens (401 Unauthorized)
//	NF_xxx       - Not found errors (404 Not Found)
//	MAP_xxx      - Mapper resolution errors (500 Internal Server Error)
//	INT_xxx      - Internal errors (500 Internal Server Error)
//	DEC_xxx      - Undecodable provider payloads (502 Bad Gateway)
//	UPSTREAM_xxx - Unexpected provider responses (502 Bad Gateway)
//	UNAVAIL_xxx  - Unreachable dependencies (503 Service Unavailable)
//	TIMEOUT_xxx  - Deadline exceeded (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx)

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationRange indicates a value is outside its acceptable range.
	CodeValidationRange Code = "VAL_004"

	// Credential errors (CRED_xxx)

	// CodeMissingHashMaterial indicates a pre-hashed credential lacks the
	// hash value, iteration count or salt its algorithm requires.
	CodeMissingHashMaterial Code = "CRED_001"

	// CodeUnsupportedAlgorithm indicates a hash algorithm with no encoding.
	CodeUnsupportedAlgorithm Code = "CRED_002"

	// Token errors (TOKEN_xxx)

	// CodeMalformedToken indicates a bearer token could not be decoded.
	CodeMalformedToken Code = "TOKEN_001"

	// Not found errors (NF_xxx)

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundUser indicates a provider user lookup did not return
	// exactly one user.
	CodeNotFoundUser Code = "NF_002"

	// Mapping errors (MAP_xxx)

	// CodeNoMapperFound indicates no registered mapper supports a local user.
	CodeNoMapperFound Code = "MAP_001"

	// CodeAmbiguousMapper indicates more than one registered mapper supports
	// a local user while strict resolution is enabled.
	CodeAmbiguousMapper Code = "MAP_002"

	// Internal errors (INT_xxx)

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalCache indicates a cache backend operation failed.
	CodeInternalCache Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Decoding errors (DEC_xxx)

	// CodeDecoding indicates a provider response or cached payload is not
	// the JSON document it should be.
	CodeDecoding Code = "DEC_001"

	// Upstream errors (UPSTREAM_xxx)

	// CodeTokenRequestFailed indicates the token endpoint answered with a
	// non-2xx status.
	CodeTokenRequestFailed Code = "UPSTREAM_001"

	// CodeUpstreamStatus indicates an admin endpoint answered with a status
	// other than the one the operation expects.
	CodeUpstreamStatus Code = "UPSTREAM_002"

	// CodeUserCreation indicates the provider rejected a user creation.
	CodeUserCreation Code = "UPSTREAM_003"

	// Unavailable errors (UNAVAIL_xxx)

	// CodeUnavailable indicates a general unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates the identity provider or the cache
	// could not be reached.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx)

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutCache indicates a cache operation timed out.
	CodeTimeoutCache Code = "TIMEOUT_002"

	// CodeTimeoutDependency indicates a call to the identity provider timed out.
	CodeTimeoutDependency Code = "TIMEOUT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "TOKEN").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
