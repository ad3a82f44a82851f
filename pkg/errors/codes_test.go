package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCode_String verifies that String returns the raw code value.
func TestCode_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "AUTH_003", CodeAuthenticationMalformed.String())
	assert.Equal(t, "UNAVAIL_002", CodeUnavailableIntrospection.String())
	assert.Equal(t, "", Code("").String())
}

// TestCode_Category verifies category extraction across every code family.
func TestCode_Category(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code Code
		want string
	}{
		{"validation", CodeValidation, "VAL"},
		{"validation required", CodeValidationRequired, "VAL"},
		{"authentication", CodeAuthentication, "AUTH"},
		{"authentication expired", CodeAuthenticationExpired, "AUTH"},
		{"authentication malformed", CodeAuthenticationMalformed, "AUTH"},
		{"authentication signature", CodeAuthenticationSignature, "AUTH"},
		{"authentication key unknown", CodeAuthenticationKeyUnknown, "AUTH"},
		{"authentication rejected", CodeAuthenticationRejected, "AUTH"},
		{"authorization", CodeAuthorization, "AUTHZ"},
		{"internal", CodeInternal, "INT"},
		{"internal configuration", CodeInternalConfiguration, "INT"},
		{"unavailable dependency", CodeUnavailableDependency, "UNAVAIL"},
		{"unavailable introspection", CodeUnavailableIntrospection, "UNAVAIL"},
		{"unavailable cache", CodeUnavailableCache, "UNAVAIL"},
		{"timeout dependency", CodeTimeoutDependency, "TIMEOUT"},
		{"timeout introspection", CodeTimeoutIntrospection, "TIMEOUT"},
		{"timeout cache", CodeTimeoutCache, "TIMEOUT"},
		{"no underscore", Code("AUTH"), "AUTH"},
		{"empty", Code(""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.Category(), "Category() for code %s", tt.code)
		})
	}
}

// TestCode_Uniqueness verifies that no two declared codes share a value.
// Codes are part of the public API contract and must stay distinct.
func TestCode_Uniqueness(t *testing.T) {
	t.Parallel()

	codes := []Code{
		CodeValidation, CodeValidationRequired,
		CodeAuthentication, CodeAuthenticationExpired, CodeAuthenticationMalformed,
		CodeAuthenticationSignature, CodeAuthenticationKeyUnknown, CodeAuthenticationRejected,
		CodeAuthorization,
		CodeInternal, CodeInternalConfiguration,
		CodeUnavailableDependency, CodeUnavailableIntrospection, CodeUnavailableCache,
		CodeTimeoutDependency, CodeTimeoutIntrospection, CodeTimeoutCache,
	}

	seen := make(map[Code]bool, len(codes))
	for _, code := range codes {
		assert.False(t, seen[code], "duplicate code value %s", code)
		seen[code] = true
	}
}
