// Package auth provides bearer-token validation for services running on the
// StricklySoft Cloud Platform. A resource server embeds one of three
// interchangeable validation strategies:
//
//   - Local: cryptographic verification of the token's signature and
//     standard claims against configured key material (shared secret or a
//     remote JWKS key set).
//   - Remote: real-time RFC 7662 introspection against the authorization
//     server, which also supports opaque (non-JWT) tokens.
//   - Hybrid: local verification plus a validation cache and conditional
//     remote introspection for tokens that are near expiry or failed the
//     local check.
//
// The strategy is selected once at startup via [Config.Mode] and
// constructed with [New]; all three satisfy [TokenValidator].
//
// # Principals
//
// Successful validation yields a [Principal]: the subject, the full claim
// set, and the granted authorities derived from the configured role claim.
// The principal is an explicit return value; the HTTP middleware and gRPC
// interceptors in this package store it in the request context, from where
// handlers retrieve it with [PrincipalFromContext].
//
// # Failure semantics
//
// Every failure is a *[sserr.Error] with a stable code, so callers can
// always distinguish an authoritative rejection (AUTH_xxx) from an
// unavailable verdict (UNAVAIL_xxx, TIMEOUT_xxx). Remote outages are never
// downgraded to "treat as valid": validation fails closed.
package auth

import (
	"context"
	"time"
)

// PrincipalSource identifies which validation path produced a Principal.
type PrincipalSource string

const (
	// SourceLocal indicates the principal was built from a locally
	// verified token's claims.
	SourceLocal PrincipalSource = "local"

	// SourceIntrospection indicates the principal was built from an
	// introspection response; its claims are authoritative as of the
	// remote call.
	SourceIntrospection PrincipalSource = "introspection"
)

// Principal is the result of a successful token validation: the resolved
// identity and authorization context of the caller. A Principal is created
// fresh on every successful validation, is never persisted, and lives for
// the duration of a single request.
//
// Principal is immutable after creation; accessors return defensive copies.
type Principal struct {
	subject     string
	claims      map[string]any
	authorities []string
	expiresAt   time.Time
	issuedAt    time.Time
	source      PrincipalSource
}

// TokenValidator validates bearer token strings and resolves the Principal
// they represent. Implementations are responsible for verifying token
// authenticity, expiration, and any other security requirements of their
// strategy.
//
// This interface is used by the gRPC interceptors and HTTP middleware to
// authenticate incoming requests. [New] returns the platform
// implementations; consumers may provide their own.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type TokenValidator interface {
	// Validate verifies the given bearer token string and returns the
	// Principal it represents. Returns a *[sserr.Error] if the token is
	// invalid, expired, rejected, or cannot be judged.
	//
	// The context may carry deadlines, cancellation signals, and tracing
	// information that validators should respect.
	Validate(ctx context.Context, token string) (*Principal, error)
}

// newPrincipal creates a Principal, defensively copying the claims map and
// authorities slice.
func newPrincipal(subject string, claims map[string]any, authorities []string, expiresAt, issuedAt time.Time, source PrincipalSource) *Principal {
	copiedClaims := make(map[string]any, len(claims))
	for k, v := range claims {
		copiedClaims[k] = v
	}
	copiedAuth := make([]string, len(authorities))
	copy(copiedAuth, authorities)
	return &Principal{
		subject:     subject,
		claims:      copiedClaims,
		authorities: copiedAuth,
		expiresAt:   expiresAt,
		issuedAt:    issuedAt,
		source:      source,
	}
}

// Subject returns the subject identifier ("sub" claim) of the principal.
func (p *Principal) Subject() string { return p.subject }

// Claims returns a shallow copy of the principal's claims. Each call
// returns a new map, so callers may safely modify the result without
// affecting the principal or other callers.
func (p *Principal) Claims() map[string]any {
	copied := make(map[string]any, len(p.claims))
	for k, v := range p.claims {
		copied[k] = v
	}
	return copied
}

// Claim returns the value of a single claim and whether it was present.
func (p *Principal) Claim(name string) (any, bool) {
	v, ok := p.claims[name]
	return v, ok
}

// Authorities returns a copy of the granted authorities. Each authority is
// the configured prefix followed by the uppercased role name (e.g.,
// "ROLE_ADMIN"). The returned slice is never nil.
func (p *Principal) Authorities() []string {
	copied := make([]string, len(p.authorities))
	copy(copied, p.authorities)
	return copied
}

// HasAuthority reports whether the principal holds the given authority.
// The comparison is exact; callers pass the full prefixed form.
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasAnyAuthority reports whether the principal holds at least one of the
// given authorities. Returns false for an empty argument list.
func (p *Principal) HasAnyAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if p.HasAuthority(a) {
			return true
		}
	}
	return false
}

// ExpiresAt returns the token's expiration instant, or the zero time if
// the claim was absent (possible only for introspection-sourced
// principals; locally verified tokens always carry exp).
func (p *Principal) ExpiresAt() time.Time { return p.expiresAt }

// IssuedAt returns the token's issued-at instant, or the zero time if the
// claim was absent.
func (p *Principal) IssuedAt() time.Time { return p.issuedAt }

// Source returns which validation path produced this principal.
func (p *Principal) Source() PrincipalSource { return p.source }
