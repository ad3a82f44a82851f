package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/StricklySoft/stricklysoft-authkit/pkg/auth"

// New constructs the [TokenValidator] selected by cfg.Mode. The
// configuration is validated first; an error with code
// [sserr.CodeInternalConfiguration] is returned if it is invalid.
//
// The returned validator is constructed once at startup and shared
// read-mostly across requests; there is no runtime mode switching.
func New(cfg Config) (TokenValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeLocal:
		return NewLocalValidator(cfg), nil
	case ModeRemote:
		return NewRemoteValidator(cfg), nil
	case ModeHybrid:
		return NewHybridValidator(cfg), nil
	default:
		return nil, sserr.Newf(sserr.CodeInternalConfiguration,
			"auth: unknown validation mode %q", cfg.Mode)
	}
}

// ---------------------------------------------------------------------------
// LocalValidator — pure cryptographic verification
// ---------------------------------------------------------------------------

// LocalValidator validates tokens purely by local cryptographic
// verification through a [Decoder]. No per-request network I/O occurs
// (the JWKS key set, when configured, is fetched lazily and cached).
//
// LocalValidator is safe for concurrent use by multiple goroutines.
type LocalValidator struct {
	decoder *Decoder
	tracer  trace.Tracer
}

// Compile-time assertion that LocalValidator implements TokenValidator.
var _ TokenValidator = (*LocalValidator)(nil)

// NewLocalValidator creates a local validator from cfg. The caller is
// responsible for having validated the configuration; [New] does so.
func NewLocalValidator(cfg Config) *LocalValidator {
	return &LocalValidator{
		decoder: NewDecoder(cfg),
		tracer:  otel.Tracer(tracerName),
	}
}

// Validate verifies the token locally and returns its Principal.
func (v *LocalValidator) Validate(ctx context.Context, token string) (*Principal, error) {
	ctx, span := v.tracer.Start(ctx, "auth.validate")
	defer span.End()
	span.SetAttributes(attribute.String("auth.mode", ModeLocal.String()))

	principal, err := v.decoder.Decode(ctx, token)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.source", string(principal.Source())))
	return principal, nil
}

// ---------------------------------------------------------------------------
// RemoteValidator — pure RFC 7662 introspection
// ---------------------------------------------------------------------------

// RemoteValidator validates tokens purely by introspection against the
// authorization server. The token is forwarded exactly as received, so
// opaque (non-JWT) tokens work. Every validation is a network call that
// fails closed on outage.
//
// RemoteValidator is safe for concurrent use by multiple goroutines.
type RemoteValidator struct {
	introspector   Introspector
	authorityClaim string
	authorityPfx   string
	tracer         trace.Tracer
}

// Compile-time assertion that RemoteValidator implements TokenValidator.
var _ TokenValidator = (*RemoteValidator)(nil)

// NewRemoteValidator creates a remote validator from cfg. The caller is
// responsible for having validated the configuration; [New] does so.
func NewRemoteValidator(cfg Config) *RemoteValidator {
	return &RemoteValidator{
		introspector:   NewIntrospectionClient(cfg),
		authorityClaim: cfg.AuthorityClaim,
		authorityPfx:   cfg.AuthorityPrefix,
		tracer:         otel.Tracer(tracerName),
	}
}

// Validate introspects the token and returns the introspection-sourced
// Principal.
//
// Error codes returned:
//   - [sserr.CodeAuthenticationRejected]: the authority reported the
//     token inactive
//   - [sserr.CodeUnavailableIntrospection] /
//     [sserr.CodeTimeoutIntrospection]: the verdict could not be obtained
//     (fail closed)
func (v *RemoteValidator) Validate(ctx context.Context, token string) (*Principal, error) {
	ctx, span := v.tracer.Start(ctx, "auth.validate")
	defer span.End()
	span.SetAttributes(attribute.String("auth.mode", ModeRemote.String()))

	result, err := v.introspector.Introspect(ctx, token)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	if !result.Active {
		rejErr := sserr.New(sserr.CodeAuthenticationRejected,
			"auth: token rejected by authorization server")
		finishSpan(span, rejErr)
		return nil, rejErr
	}

	principal := result.Principal(v.authorityClaim, v.authorityPfx)
	span.SetAttributes(attribute.String("auth.source", string(principal.Source())))
	return principal, nil
}

// ---------------------------------------------------------------------------
// HybridValidator — cache + local decode + conditional introspection
// ---------------------------------------------------------------------------

// HybridValidator combines the validation cache, local decoding, and
// conditional remote introspection. Per validation call it runs a fixed
// decision sequence; the cache is the only state shared across calls.
//
// Cache check: a cached-valid token is provisionally trusted, but the
// Principal is always rebuilt by a fresh local decode rather than from
// stored claims. A failed re-decode (key rotated, token expired since
// caching) invalidates the stale entry and falls through to the full
// path. A cached-invalid or absent entry goes straight to the full path:
// a previously invalid token could have become valid (clock skew), so a
// negative entry is never trusted as a short-circuit.
//
// Local decode: success with comfortable remaining lifetime caches the
// verdict and returns. Success within the near-expiry window triggers an
// authoritative remote re-check instead (when remote is enabled) —
// a token about to expire gets a fresh verdict rather than trusting a
// cache that might outlive its real validity window. A malformed token
// fails immediately and is never forwarded to the remote authority; any
// other local failure falls back to introspection when remote is enabled.
//
// Remote check: an active verdict caches true and returns the
// introspection-sourced Principal. An inactive verdict or an unreachable
// endpoint fails the validation — remote failures are never downgraded to
// "treat as valid", and nothing is retried within the call.
//
// HybridValidator is safe for concurrent use by multiple goroutines.
type HybridValidator struct {
	decoder        *Decoder
	introspector   Introspector
	cache          ValidationCache
	remoteEnabled  bool
	nearExpiry     time.Duration
	authorityClaim string
	authorityPfx   string
	tracer         trace.Tracer
	logger         *slog.Logger
}

// Compile-time assertion that HybridValidator implements TokenValidator.
var _ TokenValidator = (*HybridValidator)(nil)

// NewHybridValidator creates a hybrid validator from cfg. The caller is
// responsible for having validated the configuration; [New] does so.
// If cfg.Cache is nil, an in-memory cache sized by cfg.CacheTTL and
// cfg.CacheMaxSize is used.
func NewHybridValidator(cfg Config) *HybridValidator {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryValidationCache(cfg.CacheTTL, cfg.CacheMaxSize)
	}

	var introspector Introspector
	if cfg.RemoteEnabled {
		introspector = NewIntrospectionClient(cfg)
	}

	return &HybridValidator{
		decoder:        NewDecoder(cfg),
		introspector:   introspector,
		cache:          cache,
		remoteEnabled:  cfg.RemoteEnabled,
		nearExpiry:     cfg.NearExpiryWindow,
		authorityClaim: cfg.AuthorityClaim,
		authorityPfx:   cfg.AuthorityPrefix,
		tracer:         otel.Tracer(tracerName),
		logger:         cfg.logger(),
	}
}

// Validate runs the hybrid decision sequence for the token and returns
// its Principal. See the type documentation for the full flow and
// failure semantics.
func (v *HybridValidator) Validate(ctx context.Context, token string) (*Principal, error) {
	ctx, span := v.tracer.Start(ctx, "auth.validate")
	defer span.End()
	span.SetAttributes(attribute.String("auth.mode", ModeHybrid.String()))

	cached, ok := v.cache.Get(ctx, token)
	hit := ok && cached
	span.SetAttributes(attribute.Bool("auth.cache_hit", hit))

	if hit {
		// Trust the cache provisionally but rebuild the principal from
		// a fresh decode; never serve claims recorded at insert time.
		principal, err := v.decoder.Decode(ctx, token)
		if err == nil {
			span.SetAttributes(attribute.String("auth.source", string(principal.Source())))
			return principal, nil
		}
		// Stale entry disproved by the re-decode; drop it and fall
		// through to the full path.
		if invErr := v.cache.Invalidate(ctx, token); invErr != nil {
			v.logger.WarnContext(ctx, "auth: failed to invalidate stale cache entry",
				"error", invErr,
			)
		}
	}

	principal, decodeErr := v.decoder.Decode(ctx, token)
	if decodeErr == nil {
		nearExpiry := time.Until(principal.ExpiresAt()) < v.nearExpiry
		span.SetAttributes(attribute.Bool("auth.near_expiry", nearExpiry))

		if nearExpiry && v.remoteEnabled {
			return v.remoteCheck(ctx, span, token)
		}

		v.cache.Put(ctx, token, true)
		span.SetAttributes(attribute.String("auth.source", string(principal.Source())))
		return principal, nil
	}

	// Malformed structure is never forwarded to the remote authority.
	if sserr.HasCode(decodeErr, sserr.CodeAuthenticationMalformed) {
		finishSpan(span, decodeErr)
		return nil, decodeErr
	}

	if v.remoteEnabled {
		return v.remoteCheck(ctx, span, token)
	}

	finishSpan(span, decodeErr)
	return nil, decodeErr
}

// remoteCheck introspects the token and converts the verdict. An active
// token caches true and yields the introspection-sourced principal;
// anything else fails the validation.
func (v *HybridValidator) remoteCheck(ctx context.Context, span trace.Span, token string) (*Principal, error) {
	result, err := v.introspector.Introspect(ctx, token)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	if !result.Active {
		rejErr := sserr.New(sserr.CodeAuthenticationRejected,
			"auth: token rejected by authorization server")
		finishSpan(span, rejErr)
		return nil, rejErr
	}

	v.cache.Put(ctx, token, true)
	principal := result.Principal(v.authorityClaim, v.authorityPfx)
	span.SetAttributes(attribute.String("auth.source", string(principal.Source())))
	return principal, nil
}

// InvalidateToken removes the validation cache entry for the token. Use
// this from revocation hooks (e.g., logout) so the next validation runs
// the full check.
func (v *HybridValidator) InvalidateToken(ctx context.Context, token string) error {
	return v.cache.Invalidate(ctx, token)
}

// ClearCache empties the validation cache.
func (v *HybridValidator) ClearCache(ctx context.Context) error {
	return v.cache.Clear(ctx)
}

// CacheStats reports the validation cache's size and hit/miss counters.
func (v *HybridValidator) CacheStats(ctx context.Context) (CacheStats, error) {
	return v.cache.Stats(ctx)
}

// finishSpan records an error on the span if err is non-nil and sets the
// span status to Error. This is a helper for consistent error recording
// across validation paths.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
