package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
// Use this for creating errors without an underlying cause.
//
// Example:
//
//	err := errors.New(errors.CodeAuthenticationMalformed, "token is empty")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
// Use this for creating errors with dynamic content in the message.
//
// Example:
//
//	err := errors.Newf(errors.CodeAuthenticationKeyUnknown, "no key for kid %q", kid)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrap returns nil.
//
// Example:
//
//	resp, err := client.Do(req)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeUnavailableIntrospection, "introspection request failed")
//	}
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
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrapf returns nil.
//
// Example:
//
//	err := errors.Wrapf(err, errors.CodeUnavailableDependency, "failed to fetch JWKS from %s", url)
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

// Validation creates a new validation error.
// This is a convenience function equivalent to New(CodeValidation, message).
//
// Example:
//
//	err := errors.Validation("token parameter is required")
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
//
// Example:
//
//	err := errors.Validationf("field %q must be at least %d characters", field, minLen)
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Unauthorized creates a new authentication error.
// Use this when authentication fails (invalid or missing credentials).
//
// Example:
//
//	err := errors.Unauthorized("missing bearer token")
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new authorization error.
// Use this when the authenticated principal lacks a required authority.
//
// Example:
//
//	err := errors.Forbidden("requires ROLE_ADMIN")
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// Internal creates a new internal error.
// Use this for unexpected system failures that should not expose details to users.
//
// Example:
//
//	err := errors.Internal("an unexpected error occurred")
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf creates a new internal error with a formatted message.
// Use this for logging detailed internal errors.
//
// Example:
//
//	err := errors.Internalf("failed to process request: %v", underlyingErr)
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable creates a new dependency unavailable error.
// Use this when a service or dependency is temporarily unavailable.
//
// Example:
//
//	err := errors.Unavailable("JWKS endpoint is unreachable")
func Unavailable(message string) *Error {
	return New(CodeUnavailableDependency, message)
}

// Timeout creates a new timeout error.
// Use this when an operation exceeds its time limit.
//
// Example:
//
//	err := errors.Timeout("request timed out after 5s")
func Timeout(message string) *Error {
	return New(CodeTimeoutDependency, message)
}

// FromError converts a standard error to an Error.
// If the error is already an *Error, it is returned as-is.
// Otherwise, it is wrapped as an internal error.
//
// Example:
//
//	platformErr := errors.FromError(err)
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
