package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// Decoder performs local cryptographic validation of a compact JWS: it
// parses the token, verifies the signature against key material from a
// [KeySource], and checks the standard time-based claims. The decoder
// performs no I/O other than through its key source and is safe for
// concurrent use.
type Decoder struct {
	keySource      KeySource
	allowedAlgs    []string
	clockSkew      jwt.ParserOption
	claimOpts      []jwt.ParserOption
	authorityClaim string
	authorityPfx   string
}

// NewDecoder creates a Decoder wired from cfg. The caller is responsible
// for having validated the configuration; key material is resolved from
// cfg.KeySource, falling back to cfg.SigningKey or cfg.JWKSURL.
func NewDecoder(cfg Config) *Decoder {
	ks := cfg.KeySource
	if ks == nil {
		if cfg.SigningKey.Value() != "" {
			ks = NewStaticKeySource(cfg.SigningKey)
		} else {
			ks = NewJWKSKeySource(cfg.JWKSURL, cfg.JWKSCacheTTL, cfg.httpClient())
		}
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Decoder{
		keySource:      ks,
		allowedAlgs:    cfg.AllowedAlgorithms,
		clockSkew:      jwt.WithLeeway(cfg.ClockSkew),
		claimOpts:      opts,
		authorityClaim: cfg.AuthorityClaim,
		authorityPfx:   cfg.AuthorityPrefix,
	}
}

// Decode verifies the token and returns the Principal it represents.
// Identical input yields identical output; the method has no side effects.
//
// Error codes returned:
//   - [sserr.CodeAuthenticationMalformed]: empty, oversized, or
//     structurally invalid token, or an unsigned "none" algorithm header
//   - [sserr.CodeAuthenticationSignature]: signature verification failed
//   - [sserr.CodeAuthenticationExpired]: token expired or not yet valid
//   - [sserr.CodeAuthenticationKeyUnknown]: no key for the token's kid
//   - [sserr.CodeAuthenticationRejected]: wrong issuer or audience
//   - [sserr.CodeUnavailableDependency] / [sserr.CodeTimeoutDependency]:
//     key material could not be fetched
func (d *Decoder) Decode(ctx context.Context, tokenStr string) (*Principal, error) {
	if tokenStr == "" {
		return nil, sserr.New(sserr.CodeAuthenticationMalformed, "auth: token must not be empty")
	}
	if len(tokenStr) > maxTokenSize {
		return nil, sserr.New(sserr.CodeAuthenticationMalformed, "auth: token exceeds maximum size")
	}

	// Pre-flight parse without verification to reject structural garbage
	// and unsigned tokens before any key lookup.
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || unverified == nil {
		return nil, sserr.New(sserr.CodeAuthenticationMalformed, "auth: token is malformed")
	}

	// Reject alg:none — critical security check.
	algStr, _ := unverified.Header["alg"].(string)
	if strings.EqualFold(algStr, "none") {
		return nil, sserr.New(sserr.CodeAuthenticationMalformed, "auth: algorithm 'none' is not permitted")
	}

	parserOpts := append([]jwt.ParserOption{
		jwt.WithValidMethods(d.allowedAlgs),
		d.clockSkew,
	}, d.claimOpts...)

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return d.keySource.VerificationKey(ctx, kid, token.Method.Alg())
	}, parserOpts...)
	if err != nil {
		return nil, classifyDecodeError(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, sserr.New(sserr.CodeAuthentication, "auth: unable to extract token claims")
	}

	claims := mapClaimsToMap(mc)
	return newPrincipal(
		subjectFromClaims(claims),
		claims,
		authoritiesFromClaims(claims, d.authorityClaim, d.authorityPfx),
		timeClaim(claims, "exp"),
		timeClaim(claims, "iat"),
		SourceLocal,
	), nil
}

// mapClaimsToMap converts jwt.MapClaims to a plain map[string]any.
// This allows the claims to be passed to functions that expect a plain map
// without carrying the jwt.MapClaims type.
func mapClaimsToMap(mc jwt.MapClaims) map[string]any {
	result := make(map[string]any, len(mc))
	for k, v := range mc {
		result[k] = v
	}
	return result
}

// classifyDecodeError converts a JWT library error to a *sserr.Error with
// the appropriate code. Key source errors (already *sserr.Error) pass
// through unchanged so their unavailability codes survive.
func classifyDecodeError(err error) *sserr.Error {
	if err == nil {
		return nil
	}

	// Key source and other pre-classified errors pass through. The jwt
	// library joins keyfunc errors under ErrTokenUnverifiable; errors.As
	// traverses the join.
	var ssError *sserr.Error
	if errors.As(err, &ssError) {
		return ssError
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token has expired")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token is not yet valid")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return sserr.Wrap(err, sserr.CodeAuthenticationSignature, "auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return sserr.Wrap(err, sserr.CodeAuthenticationMalformed, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return sserr.Wrap(err, sserr.CodeAuthenticationRejected, "auth: token issuer is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return sserr.Wrap(err, sserr.CodeAuthenticationRejected, "auth: token audience is invalid")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return sserr.Wrap(err, sserr.CodeAuthenticationRejected, "auth: token is missing a required claim")
	default:
		return sserr.Wrap(err, sserr.CodeAuthentication, "auth: token validation failed")
	}
}
