package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StricklySoft/stricklysoft-authkit/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// introspectionStub is an RFC 7662 endpoint with a scripted verdict and a
// call counter, so tests can assert exactly when the hybrid flow goes
// remote.
type introspectionStub struct {
	server *httptest.Server
	calls  atomic.Int64
	active atomic.Bool
	broken atomic.Bool
}

func newIntrospectionStub(t *testing.T) *introspectionStub {
	t.Helper()

	stub := &introspectionStub{}
	stub.active.Store(true)

	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		if stub.broken.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"active": stub.active.Load(),
			"sub":    fixtures.TestSubject,
			"exp":    time.Now().Add(time.Hour).Unix(),
			"roles":  []string{"admin"},
		})
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

// hybridTestConfig returns a validated hybrid configuration verifying
// against the shared test signing key and introspecting against the stub.
func hybridTestConfig(t *testing.T, stub *introspectionStub) Config {
	t.Helper()

	cfg := Config{
		Mode:                      ModeHybrid,
		Issuer:                    fixtures.TestIssuer,
		Audience:                  fixtures.TestAudience,
		SigningKey:                Secret(fixtures.TestSigningKey),
		RemoteEnabled:             true,
		NearExpiryWindow:          time.Minute,
		IntrospectionURL:          stub.server.URL,
		IntrospectionClientID:     fixtures.TestClientID,
		IntrospectionClientSecret: Secret(fixtures.TestClientSecret),
	}
	require.Nil(t, cfg.Validate())
	return cfg
}

// =============================================================================
// New — factory dispatch
// =============================================================================

func TestNew_ModeDispatch(t *testing.T) {
	t.Parallel()

	t.Run("local", func(t *testing.T) {
		t.Parallel()

		v, err := New(validLocalConfig())
		require.NoError(t, err)
		assert.IsType(t, &LocalValidator{}, v)
	})

	t.Run("remote", func(t *testing.T) {
		t.Parallel()

		v, err := New(Config{
			Mode:                      ModeRemote,
			IntrospectionURL:          "https://auth.example.com/introspect",
			IntrospectionClientID:     "client-id",
			IntrospectionClientSecret: Secret("client-secret"),
		})
		require.NoError(t, err)
		assert.IsType(t, &RemoteValidator{}, v)
	})

	t.Run("hybrid", func(t *testing.T) {
		t.Parallel()

		v, err := New(validHybridConfig())
		require.NoError(t, err)
		assert.IsType(t, &HybridValidator{}, v)
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Mode: ModeLocal})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalConfiguration))
}

// =============================================================================
// LocalValidator
// =============================================================================

func TestLocalValidator_Validate(t *testing.T) {
	t.Parallel()

	v, err := New(Config{
		Mode:       ModeLocal,
		Issuer:     fixtures.TestIssuer,
		Audience:   fixtures.TestAudience,
		SigningKey: Secret(fixtures.TestSigningKey),
	})
	require.NoError(t, err)

	token := mintHS256(t, fixtures.TestSigningKey, nil)

	principal, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, fixtures.TestSubject, principal.Subject())
	assert.Equal(t, SourceLocal, principal.Source())
}

func TestLocalValidator_Validate_BadToken(t *testing.T) {
	t.Parallel()

	v, err := New(validLocalConfig())
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeAuthenticationMalformed))
}

// =============================================================================
// RemoteValidator
// =============================================================================

func TestRemoteValidator_ActiveToken(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v, err := New(introspectionConfig(t, stub.server.URL))
	require.NoError(t, err)

	principal, err := v.Validate(context.Background(), "opaque-token-works-too")
	require.NoError(t, err)

	assert.Equal(t, fixtures.TestSubject, principal.Subject())
	assert.Equal(t, []string{"ROLE_ADMIN"}, principal.Authorities())
	assert.Equal(t, SourceIntrospection, principal.Source())
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestRemoteValidator_InactiveToken(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	stub.active.Store(false)

	v, err := New(introspectionConfig(t, stub.server.URL))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "revoked-token")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeAuthenticationRejected))
}

func TestRemoteValidator_FailsClosedOnOutage(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	stub.broken.Store(true)

	v, err := New(introspectionConfig(t, stub.server.URL))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "some-token")
	require.Error(t, err, "an unavailable verdict must never pass as valid")
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableIntrospection))
	assert.True(t, sserr.IsIntrospectionUnavailable(err))
}

// =============================================================================
// HybridValidator
// =============================================================================

func TestHybridValidator_LocalFastPath(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	token := mintHS256(t, fixtures.TestSigningKey, nil)

	principal, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, principal.Source())
	assert.Equal(t, int64(0), stub.calls.Load(),
		"a healthy token far from expiry must not go remote")

	// The verdict is now cached; a second validation hits the cache and
	// still resolves the principal by a fresh local decode.
	principal, err = v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, principal.Source())
	assert.Equal(t, int64(0), stub.calls.Load())

	stats, err := v.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestHybridValidator_NearExpiryGoesRemote(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	// Remaining lifetime (30s) is inside the near-expiry window (60s).
	token := mintHS256(t, fixtures.TestSigningKey, jwt.MapClaims{
		"exp": time.Now().Add(30 * time.Second).Unix(),
	})

	principal, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, SourceIntrospection, principal.Source(),
		"a near-expiry token gets an authoritative remote verdict")
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestHybridValidator_ComfortableLifetimeStaysLocal(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	// Remaining lifetime (10m) is far outside the window (60s).
	token := mintHS256(t, fixtures.TestSigningKey, jwt.MapClaims{
		"exp": time.Now().Add(10 * time.Minute).Unix(),
	})

	principal, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, principal.Source())
	assert.Equal(t, int64(0), stub.calls.Load())
}

func TestHybridValidator_MalformedNeverGoesRemote(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	for _, token := range []string{"", "garbage", "a.b"} {
		_, err := v.Validate(context.Background(), token)
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeAuthenticationMalformed),
			"token %q must classify as malformed", token)
	}
	assert.Equal(t, int64(0), stub.calls.Load(),
		"malformed tokens must never be forwarded to the authority")
}

func TestHybridValidator_DecodeFailureFallsBackToRemote(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	// Structurally sound but signed with the wrong key; locally this is a
	// signature failure, which is exactly what the remote fallback covers
	// (e.g. tokens signed by a rotated or foreign key).
	token := mintHS256(t, fixtures.AltSigningKey, nil)

	principal, err := v.Validate(context.Background(), token)
	require.NoError(t, err, "the authority's verdict wins over the local failure")
	assert.Equal(t, SourceIntrospection, principal.Source())
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestHybridValidator_RemoteRejectionFailsValidation(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	stub.active.Store(false)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	token := mintHS256(t, fixtures.AltSigningKey, nil)

	_, err := v.Validate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeAuthenticationRejected))
}

func TestHybridValidator_FailsClosedOnIntrospectionOutage(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	stub.broken.Store(true)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	token := mintHS256(t, fixtures.AltSigningKey, nil)

	_, err := v.Validate(context.Background(), token)
	require.Error(t, err, "an unreachable authority must never pass a failed token")
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableIntrospection))

	// Nothing was cached for the unjudged token.
	stats, statsErr := v.CacheStats(context.Background())
	require.NoError(t, statsErr)
	assert.Equal(t, 0, stats.Size)
}

func TestHybridValidator_RemoteDisabledStaysLocal(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Mode:       ModeHybrid,
		Issuer:     fixtures.TestIssuer,
		Audience:   fixtures.TestAudience,
		SigningKey: Secret(fixtures.TestSigningKey),
	}
	require.Nil(t, cfg.Validate())
	v := NewHybridValidator(cfg)

	// A local failure surfaces directly; there is no remote to consult.
	_, err := v.Validate(context.Background(), mintHS256(t, fixtures.AltSigningKey, nil))
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeAuthenticationSignature))

	// A near-expiry token is trusted locally.
	nearExpiry := mintHS256(t, fixtures.TestSigningKey, jwt.MapClaims{
		"exp": time.Now().Add(10 * time.Second).Unix(),
	})
	principal, err := v.Validate(context.Background(), nearExpiry)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, principal.Source())
}

func TestHybridValidator_StaleCacheEntryInvalidated(t *testing.T) {
	t.Parallel()

	cache := NewMemoryValidationCache(time.Minute, 100)
	cfg := Config{
		Mode:       ModeHybrid,
		Issuer:     fixtures.TestIssuer,
		Audience:   fixtures.TestAudience,
		SigningKey: Secret(fixtures.TestSigningKey),
		Cache:      cache,
	}
	require.Nil(t, cfg.Validate())
	v := NewHybridValidator(cfg)

	// The cache believes this token is valid, but it has since expired.
	// The cache outliving the token is exactly the staleness the fresh
	// re-decode guards against.
	expired := mintHS256(t, fixtures.TestSigningKey, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	cache.Put(context.Background(), expired, true)

	_, err := v.Validate(context.Background(), expired)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeAuthenticationExpired))

	_, ok := cache.Get(context.Background(), expired)
	assert.False(t, ok, "the disproved entry must be invalidated")
}

func TestHybridValidator_CacheManagement(t *testing.T) {
	t.Parallel()

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	ctx := context.Background()
	token := mintHS256(t, fixtures.TestSigningKey, nil)

	_, err := v.Validate(ctx, token)
	require.NoError(t, err)

	stats, err := v.CacheStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Size)

	// Revocation hook: drop the entry so the next validation runs the
	// full check.
	require.NoError(t, v.InvalidateToken(ctx, token))

	stats, err = v.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)

	_, err = v.Validate(ctx, token)
	require.NoError(t, err)
	require.NoError(t, v.ClearCache(ctx))

	stats, err = v.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)
}

// =============================================================================
// Tracing
// =============================================================================

func TestHybridValidator_ValidationSpan(t *testing.T) {
	// Swaps the global tracer provider; must not run in parallel.
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	stub := newIntrospectionStub(t)
	v := NewHybridValidator(hybridTestConfig(t, stub))

	token := mintHS256(t, fixtures.TestSigningKey, nil)
	_, err := v.Validate(context.Background(), token)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	var found bool
	for _, span := range spans {
		if span.Name() != "auth.validate" {
			continue
		}
		found = true

		attrs := make(map[string]any)
		for _, attr := range span.Attributes() {
			attrs[string(attr.Key)] = attr.Value.AsInterface()
		}
		assert.Equal(t, "hybrid", attrs["auth.mode"])
		assert.Equal(t, false, attrs["auth.cache_hit"])
		assert.Equal(t, false, attrs["auth.near_expiry"])
		assert.Equal(t, "local", attrs["auth.source"])
	}
	assert.True(t, found, "expected an auth.validate span")
}
