package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL, INT) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx  - Validation errors (400 Bad Request)
//	AUTH_xxx - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx - Authorization errors (403 Forbidden)
//	INT_xxx  - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when caller input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field or parameter
	// is missing.
	CodeValidationRequired Code = "VAL_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when a bearer token cannot be accepted. The specific code
	// records which validation step refused the token.

	// CodeAuthentication indicates a general authentication failure,
	// including a missing credential.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token is outside its
	// validity window (expired, or not yet valid).
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationMalformed indicates the token could not be
	// parsed as a JWT at all: wrong segment count, undecodable
	// segments, empty or oversized input, or an unsigned "none"
	// algorithm header.
	CodeAuthenticationMalformed Code = "AUTH_003"

	// CodeAuthenticationSignature indicates the token parsed but its
	// signature did not verify against the available key material.
	CodeAuthenticationSignature Code = "AUTH_004"

	// CodeAuthenticationKeyUnknown indicates no verification key could
	// be found for the token's key id, even after refreshing the key
	// set once.
	CodeAuthenticationKeyUnknown Code = "AUTH_005"

	// CodeAuthenticationRejected indicates an authoritative rejection:
	// the introspection endpoint reported the token inactive, or the
	// token was issued by the wrong issuer or for the wrong audience.
	CodeAuthenticationRejected Code = "AUTH_006"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// Used when the authenticated principal lacks required authorities.

	// CodeAuthorization indicates the principal is authenticated but
	// does not hold any of the required authorities.
	CodeAuthorization Code = "AUTHZ_001"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates invalid SDK configuration.
	CodeInternalConfiguration Code = "INT_002"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Used when a dependency needed to render a verdict is unreachable.

	// CodeUnavailableDependency indicates a dependent service (such as
	// a JWKS endpoint) is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_001"

	// CodeUnavailableIntrospection indicates the token introspection
	// endpoint could not be reached or returned an unusable response.
	// Validation fails closed when this occurs.
	CodeUnavailableIntrospection Code = "UNAVAIL_002"

	// CodeUnavailableCache indicates the validation cache backend is
	// unreachable.
	CodeUnavailableCache Code = "UNAVAIL_003"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeoutDependency indicates a call to a dependent service
	// timed out.
	CodeTimeoutDependency Code = "TIMEOUT_001"

	// CodeTimeoutIntrospection indicates the token introspection call
	// exceeded its deadline. Validation fails closed when this occurs.
	CodeTimeoutIntrospection Code = "TIMEOUT_002"

	// CodeTimeoutCache indicates a validation cache operation timed out.
	CodeTimeoutCache Code = "TIMEOUT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
