// Package fixtures provides shared test data constants for the
// StricklySoft AuthKit test suite.
//
// Using common constants for token identities prevents magic strings in
// tests and ensures consistency across packages.
package fixtures

// Standard token identity values used in auth tests.
const (
	// TestSubject is the default subject claim for test tokens.
	TestSubject = "user-abc-123"

	// TestIssuer is the default issuer claim for test tokens.
	TestIssuer = "https://auth.stricklysoft.test"

	// TestAudience is the default audience claim for test tokens.
	TestAudience = "stricklysoft-authkit"

	// TestClientID is the default OAuth2 client id used in
	// introspection tests.
	TestClientID = "authkit-client"

	// TestClientSecret is the default OAuth2 client secret used in
	// introspection tests. This is a deliberately weak value suitable
	// only for unit tests.
	TestClientSecret = "authkit-secret"
)

// Standard signing key material used in auth tests. Deliberately weak;
// unit tests only.
const (
	// TestSigningKey is the default HMAC signing key for HS256 test
	// tokens. It is 32 bytes long.
	TestSigningKey = "unit-test-signing-key-0123456789"

	// AltSigningKey is a second HMAC key for signature mismatch tests.
	AltSigningKey = "other-test-signing-key-987654321"

	// TestKeyID is the default kid header for JWKS-based test tokens.
	TestKeyID = "test-key-1"
)
