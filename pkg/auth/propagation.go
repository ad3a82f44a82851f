package auth

import (
	"strings"
)

// HeaderAuthorization is the standard authorization header carrying the
// bearer token. This is the primary authentication credential read by the
// HTTP middleware and gRPC server interceptors, and the header the
// outbound token relay writes.
//
// The lowercase form works for both HTTP headers (canonicalized by
// net/http) and gRPC metadata (always lowercase).
const HeaderAuthorization = "authorization"

// bearerPrefix is the standard "Bearer " prefix for authorization tokens.
const bearerPrefix = "Bearer "

// ExtractBearerToken extracts the token from an authorization header value.
// It handles the "Bearer " prefix case-insensitively.
// Returns an empty string if the header is empty or does not have a bearer prefix.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	// Case-insensitive comparison for "Bearer " prefix.
	prefix := authHeader[:len(bearerPrefix)]
	if !strings.EqualFold(prefix, bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}
