package auth

import (
	"log/slog"
	"net/http"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(), and
// MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., passing to a cryptographic function).
type Secret string

// secretRedacted is the placeholder text shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required
// (e.g., passing to a cryptographic signing or verification function).
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// ---------------------------------------------------------------------------
// HTTPClient interface
// ---------------------------------------------------------------------------

// HTTPClient abstracts the HTTP client used for fetching JWKS documents and
// calling the introspection endpoint. This allows callers to provide custom
// HTTP clients with specific timeouts, transport settings, or middleware
// (e.g., for mTLS, proxy configuration, or request tracing).
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ---------------------------------------------------------------------------
// Mode — validation strategy selector
// ---------------------------------------------------------------------------

// Mode selects which validation strategy [New] constructs. The mode is
// chosen once at startup; there is no runtime switching between strategies.
type Mode string

const (
	// ModeLocal validates tokens purely by local cryptographic
	// verification: signature, expiry, and standard claims are checked
	// against configured key material. No network call is made per
	// request (the JWKS key set may still be fetched lazily).
	ModeLocal Mode = "local"

	// ModeRemote validates tokens purely by RFC 7662 introspection
	// against the configured authorization server. The token is
	// forwarded as received, so opaque (non-JWT) tokens work. Every
	// validation is a network call.
	ModeRemote Mode = "remote"

	// ModeHybrid combines local verification with conditional remote
	// introspection and a validation cache. This is the default and the
	// recommended mode for resource servers: the fast path is a cache
	// hit plus a local decode, and introspection only runs for tokens
	// that are near expiry or failed local verification.
	ModeHybrid Mode = "hybrid"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether the mode is one of the recognized values.
func (m Mode) Valid() bool {
	switch m {
	case ModeLocal, ModeRemote, ModeHybrid:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Config — configuration for the token validators
// ---------------------------------------------------------------------------

// maxTokenSize is the maximum accepted size for a bearer token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Default values applied by [Config.Validate] for zero-valued fields.
const (
	// DefaultClockSkew is the default tolerated clock difference between
	// this service and the token issuer.
	DefaultClockSkew = 30 * time.Second

	// DefaultJWKSCacheTTL is the default time a fetched JWKS key set is
	// served before being refreshed from the endpoint.
	DefaultJWKSCacheTTL = 1 * time.Hour

	// DefaultAuthorityClaim is the claim name the validators read role
	// names from.
	DefaultAuthorityClaim = "roles"

	// DefaultAuthorityPrefix is the prefix prepended to each uppercased
	// role name when deriving granted authorities.
	DefaultAuthorityPrefix = "ROLE_"

	// DefaultNearExpiryWindow is the default lookahead window: a token
	// whose remaining lifetime is below this triggers an authoritative
	// remote re-check in hybrid mode.
	DefaultNearExpiryWindow = 60 * time.Second

	// DefaultIntrospectionTimeout is the default deadline applied to a
	// single introspection call.
	DefaultIntrospectionTimeout = 5 * time.Second

	// DefaultCacheTTL is the default maximum age of a validation cache
	// entry before it is treated as absent.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheMaxSize is the default maximum number of entries held
	// by the in-memory validation cache.
	DefaultCacheMaxSize = 10000
)

// Config holds the configuration for the token validators constructed by
// [New]. It covers all three modes; [Config.Validate] enforces the
// per-mode requirements (key material for local verification, the
// introspection endpoint triple for remote verification).
//
// Configuration values are typically injected as environment variables;
// the env struct tags document the expected variable names and work with
// the pkg/config layered loader.
type Config struct {
	// Mode selects the validation strategy (local, remote, or hybrid).
	// Defaults to "hybrid".
	Mode Mode `json:"mode" env:"AUTH_MODE" envDefault:"hybrid"`

	// Issuer is the expected "iss" claim in locally verified tokens.
	// If empty, the issuer claim is not enforced.
	Issuer string `json:"issuer,omitempty" env:"AUTH_ISSUER"`

	// Audience is the expected "aud" claim in locally verified tokens.
	// If empty, the audience claim is not enforced.
	Audience string `json:"audience,omitempty" env:"AUTH_AUDIENCE"`

	// ClockSkew is the maximum allowed clock difference between this
	// service and the token issuer. Tokens within this window of their
	// expiration or not-before times are still considered valid.
	// Must be non-negative. Defaults to 30 seconds.
	ClockSkew time.Duration `json:"clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// SigningKey is the shared HMAC secret used to verify locally signed
	// tokens. Exactly one of SigningKey and JWKSURL must be set for the
	// local and hybrid modes. The Secret type prevents accidental
	// logging of the key value.
	SigningKey Secret `json:"-" env:"AUTH_SIGNING_KEY"`

	// JWKSURL is the URL of a JSON Web Key Set endpoint serving the
	// issuer's public keys (RSA or EC). Exactly one of SigningKey and
	// JWKSURL must be set for the local and hybrid modes.
	JWKSURL string `json:"jwks_url,omitempty" env:"AUTH_JWKS_URL"`

	// JWKSCacheTTL is the time a fetched JWKS key set is served before
	// being refreshed from the endpoint. A key-id miss forces an early
	// refresh regardless of this TTL. Must be non-negative.
	// Defaults to 1 hour.
	JWKSCacheTTL time.Duration `json:"jwks_cache_ttl" env:"AUTH_JWKS_CACHE_TTL" envDefault:"1h"`

	// AllowedAlgorithms is the allow-list of JWS algorithms accepted
	// during local verification. If empty, it defaults to HS256 when
	// SigningKey is set, or RS256 and ES256 when JWKSURL is set.
	AllowedAlgorithms []string `json:"allowed_algorithms,omitempty" env:"AUTH_ALLOWED_ALGORITHMS"`

	// AuthorityClaim is the claim name holding role names. Defaults to
	// "roles".
	AuthorityClaim string `json:"authority_claim" env:"AUTH_AUTHORITY_CLAIM" envDefault:"roles"`

	// AuthorityPrefix is prepended to each uppercased role name when
	// deriving granted authorities (e.g., "admin" -> "ROLE_ADMIN").
	// Defaults to "ROLE_".
	AuthorityPrefix string `json:"authority_prefix" env:"AUTH_AUTHORITY_PREFIX" envDefault:"ROLE_"`

	// RemoteEnabled controls whether the hybrid validator may fall back
	// to remote introspection. When false, hybrid validation is purely
	// local and the introspection settings are not required.
	// Defaults to true.
	RemoteEnabled bool `json:"remote_enabled" env:"AUTH_REMOTE_ENABLED" envDefault:"true"`

	// NearExpiryWindow is the lookahead window for the hybrid freshness
	// guard: a token whose remaining lifetime is below this window is
	// re-checked against the introspection endpoint rather than trusted
	// locally. Must be non-negative. Defaults to 60 seconds.
	NearExpiryWindow time.Duration `json:"near_expiry_window" env:"AUTH_NEAR_EXPIRY_WINDOW" envDefault:"60s"`

	// IntrospectionURL is the RFC 7662 token introspection endpoint.
	// Required for remote mode, and for hybrid mode when RemoteEnabled
	// is true.
	IntrospectionURL string `json:"introspection_url,omitempty" env:"AUTH_INTROSPECTION_URL"`

	// IntrospectionClientID is the client identifier used for HTTP Basic
	// authentication against the introspection endpoint.
	IntrospectionClientID string `json:"introspection_client_id,omitempty" env:"AUTH_INTROSPECTION_CLIENT_ID"`

	// IntrospectionClientSecret is the client secret used for HTTP Basic
	// authentication against the introspection endpoint. The Secret type
	// prevents accidental logging of the value.
	IntrospectionClientSecret Secret `json:"-" env:"AUTH_INTROSPECTION_CLIENT_SECRET"`

	// IntrospectionTimeout is the deadline applied to a single
	// introspection call. A call exceeding it fails closed with
	// [sserr.CodeTimeoutIntrospection]. Must be non-negative.
	// Defaults to 5 seconds.
	IntrospectionTimeout time.Duration `json:"introspection_timeout" env:"AUTH_INTROSPECTION_TIMEOUT" envDefault:"5s"`

	// CacheTTL is the maximum age of a validation cache entry before it
	// is treated as absent. Must be non-negative. Defaults to 5 minutes.
	CacheTTL time.Duration `json:"cache_ttl" env:"AUTH_CACHE_TTL" envDefault:"5m"`

	// CacheMaxSize is the maximum number of entries in the in-memory
	// validation cache. When the cache is full, expired entries are
	// evicted first, then the entry closest to expiry is removed.
	// Must be at least 1. Defaults to 10000.
	CacheMaxSize int `json:"cache_max_size" env:"AUTH_CACHE_MAX_SIZE" envDefault:"10000"`

	// HTTPClient is the HTTP client used for JWKS fetches and
	// introspection calls. If nil, a default [http.Client] with a
	// 10-second timeout is used.
	HTTPClient HTTPClient `json:"-"`

	// KeySource overrides the key source derived from SigningKey or
	// JWKSURL. Intended for tests and advanced deployments with custom
	// key distribution.
	KeySource KeySource `json:"-"`

	// Cache overrides the validation cache used by the hybrid validator.
	// If nil, an in-memory cache sized by CacheTTL and CacheMaxSize is
	// used. Provide a [RedisValidationCache] for multi-replica
	// deployments.
	Cache ValidationCache `json:"-"`

	// Logger receives warnings from degraded-but-continuing paths (cache
	// backend failures, rejected tokens at the edges). If nil,
	// [slog.Default] is used.
	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a Config with the platform defaults applied and
// hybrid mode selected. Callers must still supply key material and, when
// remote validation is enabled, the introspection endpoint settings.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeHybrid,
		ClockSkew:            DefaultClockSkew,
		JWKSCacheTTL:         DefaultJWKSCacheTTL,
		AuthorityClaim:       DefaultAuthorityClaim,
		AuthorityPrefix:      DefaultAuthorityPrefix,
		RemoteEnabled:        true,
		NearExpiryWindow:     DefaultNearExpiryWindow,
		IntrospectionTimeout: DefaultIntrospectionTimeout,
		CacheTTL:             DefaultCacheTTL,
		CacheMaxSize:         DefaultCacheMaxSize,
	}
}

// Validate checks the configuration for logical correctness, applies
// defaults for zero-valued fields, and returns a *[sserr.Error] with code
// [sserr.CodeInternalConfiguration] if any field is invalid.
//
// Validation rules:
//   - Mode must be local, remote, or hybrid (empty defaults to hybrid)
//   - local and hybrid require exactly one of SigningKey and JWKSURL
//   - remote requires IntrospectionURL, IntrospectionClientID, and
//     IntrospectionClientSecret; hybrid requires them only when
//     RemoteEnabled is true
//   - all duration fields must be non-negative
//   - CacheMaxSize must be at least 1
func (c *Config) Validate() *sserr.Error {
	c.applyDefaults()

	if !c.Mode.Valid() {
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"auth: unknown validation mode %q (want local, remote, or hybrid)", c.Mode)
	}

	needsLocal := c.Mode == ModeLocal || c.Mode == ModeHybrid
	needsRemote := c.Mode == ModeRemote || (c.Mode == ModeHybrid && c.RemoteEnabled)

	if needsLocal && c.KeySource == nil {
		hasSecret := c.SigningKey.Value() != ""
		hasJWKS := c.JWKSURL != ""
		if hasSecret == hasJWKS {
			return sserr.New(sserr.CodeInternalConfiguration,
				"auth: exactly one of signing key and JWKS URL must be set for local verification")
		}
	}

	if needsRemote {
		if c.IntrospectionURL == "" {
			return sserr.New(sserr.CodeInternalConfiguration,
				"auth: introspection URL must be set when remote validation is enabled")
		}
		if c.IntrospectionClientID == "" {
			return sserr.New(sserr.CodeInternalConfiguration,
				"auth: introspection client id must be set when remote validation is enabled")
		}
		if c.IntrospectionClientSecret.Value() == "" {
			return sserr.New(sserr.CodeInternalConfiguration,
				"auth: introspection client secret must be set when remote validation is enabled")
		}
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"clock skew", c.ClockSkew},
		{"JWKS cache TTL", c.JWKSCacheTTL},
		{"near-expiry window", c.NearExpiryWindow},
		{"introspection timeout", c.IntrospectionTimeout},
		{"cache TTL", c.CacheTTL},
	} {
		if d.value < 0 {
			return sserr.Newf(sserr.CodeInternalConfiguration,
				"auth: %s must be non-negative", d.name)
		}
	}

	if c.CacheMaxSize < 1 {
		return sserr.New(sserr.CodeInternalConfiguration,
			"auth: cache max size must be at least 1")
	}

	return nil
}

// applyDefaults sets default values for zero-valued fields. Durations are
// only defaulted when zero; explicit negative values are left for Validate
// to reject.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeHybrid
	}
	if c.ClockSkew == 0 {
		c.ClockSkew = DefaultClockSkew
	}
	if c.JWKSCacheTTL == 0 {
		c.JWKSCacheTTL = DefaultJWKSCacheTTL
	}
	if c.AuthorityClaim == "" {
		c.AuthorityClaim = DefaultAuthorityClaim
	}
	if c.AuthorityPrefix == "" {
		c.AuthorityPrefix = DefaultAuthorityPrefix
	}
	if c.NearExpiryWindow == 0 {
		c.NearExpiryWindow = DefaultNearExpiryWindow
	}
	if c.IntrospectionTimeout == 0 {
		c.IntrospectionTimeout = DefaultIntrospectionTimeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CacheMaxSize == 0 {
		c.CacheMaxSize = DefaultCacheMaxSize
	}
	if len(c.AllowedAlgorithms) == 0 {
		if c.SigningKey.Value() != "" {
			c.AllowedAlgorithms = []string{"HS256"}
		} else {
			c.AllowedAlgorithms = []string{"RS256", "ES256"}
		}
	}
}

// httpClient returns the configured HTTP client, or a default client with
// a 10-second timeout.
func (c *Config) httpClient() HTTPClient {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// logger returns the configured logger, or [slog.Default].
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
