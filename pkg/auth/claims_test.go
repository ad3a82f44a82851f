package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// authoritiesFromClaims
// =============================================================================

func TestAuthoritiesFromClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		claims   map[string]any
		expected []string
	}{
		{
			name:     "string slice",
			claims:   map[string]any{"roles": []string{"admin", "user"}},
			expected: []string{"ROLE_ADMIN", "ROLE_USER"},
		},
		{
			name:     "any slice from json decoding",
			claims:   map[string]any{"roles": []any{"admin", "user"}},
			expected: []string{"ROLE_ADMIN", "ROLE_USER"},
		},
		{
			name:     "space delimited scope string",
			claims:   map[string]any{"roles": "admin user auditor"},
			expected: []string{"ROLE_ADMIN", "ROLE_USER", "ROLE_AUDITOR"},
		},
		{
			name:     "lowercase roles are uppercased",
			claims:   map[string]any{"roles": []string{"Admin"}},
			expected: []string{"ROLE_ADMIN"},
		},
		{
			name:     "duplicates collapse preserving first-seen order",
			claims:   map[string]any{"roles": []string{"user", "admin", "USER", "User"}},
			expected: []string{"ROLE_USER", "ROLE_ADMIN"},
		},
		{
			name:     "blank entries are skipped",
			claims:   map[string]any{"roles": []string{"", "  ", "admin"}},
			expected: []string{"ROLE_ADMIN"},
		},
		{
			name:     "missing claim yields empty slice",
			claims:   map[string]any{"sub": "user-1"},
			expected: []string{},
		},
		{
			name:     "non-string elements are skipped",
			claims:   map[string]any{"roles": []any{"admin", 42, true}},
			expected: []string{"ROLE_ADMIN"},
		},
		{
			name:     "unsupported claim shape yields empty slice",
			claims:   map[string]any{"roles": map[string]any{"nested": "admin"}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := authoritiesFromClaims(tt.claims, "roles", "ROLE_")
			require.NotNil(t, got, "authorities must never be nil")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAuthoritiesFromClaims_CustomClaimAndPrefix(t *testing.T) {
	t.Parallel()

	claims := map[string]any{"groups": []string{"ops"}}

	got := authoritiesFromClaims(claims, "groups", "GROUP_")
	assert.Equal(t, []string{"GROUP_OPS"}, got)

	// The default claim name finds nothing in this shape.
	assert.Empty(t, authoritiesFromClaims(claims, "roles", "ROLE_"))
}

// =============================================================================
// subjectFromClaims
// =============================================================================

func TestSubjectFromClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		claims   map[string]any
		expected string
	}{
		{
			name:     "sub preferred",
			claims:   map[string]any{"sub": "user-1", "username": "alice"},
			expected: "user-1",
		},
		{
			name:     "username fallback",
			claims:   map[string]any{"username": "alice"},
			expected: "alice",
		},
		{
			name:     "empty sub falls back to username",
			claims:   map[string]any{"sub": "", "username": "alice"},
			expected: "alice",
		},
		{
			name:     "non-string sub falls back",
			claims:   map[string]any{"sub": 42, "username": "alice"},
			expected: "alice",
		},
		{
			name:     "neither present",
			claims:   map[string]any{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, subjectFromClaims(tt.claims))
		})
	}
}

// =============================================================================
// timeClaim
// =============================================================================

func TestTimeClaim(t *testing.T) {
	t.Parallel()

	now := time.Now().Unix()

	tests := []struct {
		name     string
		claims   map[string]any
		expected time.Time
	}{
		{
			name:     "float64 from json decoding",
			claims:   map[string]any{"exp": float64(now)},
			expected: time.Unix(now, 0),
		},
		{
			name:     "int64",
			claims:   map[string]any{"exp": now},
			expected: time.Unix(now, 0),
		},
		{
			name:     "int",
			claims:   map[string]any{"exp": int(now)},
			expected: time.Unix(now, 0),
		},
		{
			name:     "absent claim yields zero time",
			claims:   map[string]any{},
			expected: time.Time{},
		},
		{
			name:     "non-numeric claim yields zero time",
			claims:   map[string]any{"exp": "tomorrow"},
			expected: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.expected.Equal(timeClaim(tt.claims, "exp")))
		})
	}
}
