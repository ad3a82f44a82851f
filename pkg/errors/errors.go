// Package errors provides standardized error types and error handling utilities
// for StricklySoft AuthKit. It defines the error categories, error codes, and
// helper functions used to create, wrap, and inspect every failure the SDK can
// surface during token validation.
//
// # Error Categories
//
// The package defines several error categories that map to common failure scenarios:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Malformed, expired, unverifiable, or rejected tokens
//   - Authorization errors: Principal lacks a required authority
//   - Internal errors: Unexpected system failures, invalid configuration
//   - Unavailable errors: Introspection endpoint, JWKS endpoint, or cache unreachable
//   - Timeout errors: Dependency call exceeded its deadline
//
// A central property of the taxonomy is that authoritative rejection (AUTH_xxx)
// and dependency unavailability (UNAVAIL_xxx, TIMEOUT_xxx) never share a
// category, so callers can always distinguish "the token is bad" from "the
// verdict could not be obtained".
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_003") that can be used
// for error tracking, alerting, and client-side error handling. Error codes follow
// the pattern: CATEGORY_XXX where CATEGORY is a short identifier and XXX is a
// numeric code.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeAuthenticationMalformed, "token has wrong segment count")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeUnavailableIntrospection, "introspection request failed")
//
// Check error category:
//
//	if errors.IsIntrospectionUnavailable(err) {
//	    // validation failed closed, the token was not judged
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("validation failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
