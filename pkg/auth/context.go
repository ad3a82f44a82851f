package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// principalKey stores the validated Principal in the context.
	principalKey contextKey = iota

	// tokenKey stores the raw bearer token in the context, for outbound
	// token relay.
	tokenKey
)

// ContextWithPrincipal returns a new context with the given Principal
// attached. The principal can later be retrieved with
// [PrincipalFromContext].
//
// This is typically called by the gRPC server interceptors and HTTP
// middleware after successfully validating a bearer token.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext retrieves the Principal from the context.
// Returns the principal and true if present, or nil and false if no
// principal has been set. This function never returns a non-nil principal
// with false.
//
// Example:
//
//	principal, ok := auth.PrincipalFromContext(ctx)
//	if !ok {
//	    return errors.Unauthorized("no principal in context")
//	}
//	log.Info("request from", "subject", principal.Subject())
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*Principal)
	return principal, ok
}

// MustPrincipalFromContext retrieves the Principal from the context,
// panicking if no principal is present. This should only be used in code
// paths where a principal is guaranteed to exist (e.g., after the
// authentication middleware).
func MustPrincipalFromContext(ctx context.Context) *Principal {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("auth: no principal in context; ensure authentication middleware is configured")
	}
	return principal
}

// ContextWithToken returns a new context with the raw bearer token
// attached. The token can later be retrieved with [TokenFromContext]
// and is relayed to downstream services by [PropagatingRoundTripper]
// and the gRPC client interceptors.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext retrieves the raw bearer token from the context.
// Returns the token and true if present, or an empty string and false if
// no token has been set.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context.
// Returns the trace ID as a hex string and true if a valid trace is active,
// or an empty string and false if no trace is present.
//
// This allows correlating authentication events with distributed traces,
// enabling operators to link rejected tokens to specific request flows.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// SpanIDFromContext extracts the OpenTelemetry span ID from the context.
// Returns the span ID as a hex string and true if a valid span is active,
// or an empty string and false if no span is present.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.SpanID().String(), true
}
