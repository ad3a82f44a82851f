package auth

import (
	"strings"
	"time"
)

// authoritiesFromClaims derives granted authorities from a claims map.
// It reads the claim named by claimName and accepts three shapes:
//
//   - []string — role names
//   - []any whose elements are strings (the shape encoding/json produces)
//   - a single space-delimited string (OAuth2 scope style)
//
// Each role is uppercased and prefixed (e.g., "admin" -> "ROLE_ADMIN" with
// the default prefix). Duplicates are collapsed, preserving first-seen
// order. A missing or malformed claim yields an empty, non-nil slice —
// never an error — so tokens without roles authenticate with no
// authorities rather than failing.
func authoritiesFromClaims(claims map[string]any, claimName, prefix string) []string {
	raw, ok := claims[claimName]
	if !ok {
		return []string{}
	}
	return authoritiesFromValue(raw, prefix)
}

// authoritiesFromValue converts a raw claim value into prefixed
// authorities. See [authoritiesFromClaims] for the accepted shapes.
func authoritiesFromValue(raw any, prefix string) []string {
	var roles []string
	switch v := raw.(type) {
	case []string:
		roles = v
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				roles = append(roles, s)
			}
		}
	case string:
		roles = strings.Fields(v)
	}

	seen := make(map[string]struct{}, len(roles))
	result := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		authority := prefix + strings.ToUpper(role)
		if _, dup := seen[authority]; dup {
			continue
		}
		seen[authority] = struct{}{}
		result = append(result, authority)
	}
	return result
}

// subjectFromClaims extracts the subject identifier, falling back from
// "sub" to "username" (some authorization servers omit sub on
// introspection responses and report username instead).
func subjectFromClaims(claims map[string]any) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if username, ok := claims["username"].(string); ok && username != "" {
		return username
	}
	return ""
}

// timeClaim extracts a Unix-seconds timestamp claim. JSON decoding yields
// float64 for numbers; jwt.MapClaims may also carry json.Number-free
// float64 or int64 values depending on the producer. Returns the zero
// time when the claim is absent or not numeric.
func timeClaim(claims map[string]any, name string) time.Time {
	raw, ok := claims[name]
	if !ok {
		return time.Time{}
	}
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	case int:
		return time.Unix(int64(v), 0)
	default:
		return time.Time{}
	}
}
