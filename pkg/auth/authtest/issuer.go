// Package authtest provides a mock token issuer for tests and local
// development.
//
// The issuer signs HS256 tokens with a well-known development key, so any
// validator configured with the same key accepts them. It is a test
// double for a real authorization server and must never run in
// production.
//
// Usage in tests:
//
//	issuer := authtest.NewIssuer()
//	token, err := issuer.UserToken()
//
// Usage in local development, mounted next to the protected routes:
//
//	r.Mount("/mock", http.StripPrefix("/mock", issuer.Handler()))
package authtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Well-known development defaults. The signing key is intentionally
// public: it exists so that examples and tests agree on a key without
// additional wiring.
const (
	// DefaultSigningKey is the shared development HMAC key.
	DefaultSigningKey = "stricklysoft-dev-signing-key-32b"

	// DefaultIssuer is the iss claim stamped on minted tokens.
	DefaultIssuer = "https://auth.stricklysoft.test"

	// DefaultAudience is the aud claim stamped on minted tokens.
	DefaultAudience = "stricklysoft-authkit"

	// DefaultTTL is the token lifetime when a mint spec does not set one.
	DefaultTTL = time.Hour
)

// Issuer mints signed HS256 tokens. The zero value is not usable; create
// one with [NewIssuer] or fill every field.
type Issuer struct {
	// SigningKey is the HMAC key used to sign tokens.
	SigningKey []byte

	// Issuer is the iss claim value.
	Issuer string

	// Audience is the aud claim value.
	Audience string

	// TTL is the default token lifetime.
	TTL time.Duration
}

// NewIssuer creates an Issuer with the well-known development defaults.
func NewIssuer() *Issuer {
	return &Issuer{
		SigningKey: []byte(DefaultSigningKey),
		Issuer:     DefaultIssuer,
		Audience:   DefaultAudience,
		TTL:        DefaultTTL,
	}
}

// MintSpec describes a token to mint. Zero-valued fields fall back to the
// issuer's defaults.
type MintSpec struct {
	// Subject is the sub claim. Required.
	Subject string

	// Roles become the roles claim. May be empty.
	Roles []string

	// TTL overrides the issuer's default lifetime. A negative TTL mints
	// an already-expired token.
	TTL time.Duration

	// NotBefore sets the nbf claim relative to now. Zero means valid
	// immediately.
	NotBefore time.Duration

	// Claims are merged into the token verbatim. Registered claims set
	// here override the minted ones.
	Claims map[string]any
}

// Mint creates a signed compact JWS for the given spec.
func (i *Issuer) Mint(spec MintSpec) (string, error) {
	if spec.Subject == "" {
		return "", fmt.Errorf("authtest: subject is required")
	}

	ttl := spec.TTL
	if ttl == 0 {
		ttl = i.TTL
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": i.Issuer,
		"aud": i.Audience,
		"sub": spec.Subject,
		"iat": now.Unix(),
		"nbf": now.Add(spec.NotBefore).Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.NewString(),
	}
	if spec.Roles != nil {
		claims["roles"] = spec.Roles
	}
	for k, v := range spec.Claims {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.SigningKey)
	if err != nil {
		return "", fmt.Errorf("authtest: signing token: %w", err)
	}
	return signed, nil
}

// UserToken mints a token for the standard test user (subject user-001,
// role USER).
func (i *Issuer) UserToken() (string, error) {
	return i.Mint(MintSpec{Subject: "user-001", Roles: []string{"USER"}})
}

// AdminToken mints a token for the standard test administrator (subject
// admin-001, roles ADMIN and USER).
func (i *Issuer) AdminToken() (string, error) {
	return i.Mint(MintSpec{Subject: "admin-001", Roles: []string{"ADMIN", "USER"}})
}

// ExpiredToken mints a token for the given subject that expired an hour
// ago.
func (i *Issuer) ExpiredToken(subject string) (string, error) {
	return i.Mint(MintSpec{Subject: subject, Roles: []string{"USER"}, TTL: -time.Hour})
}

// tokenResponse is the OAuth2-style body the HTTP endpoints return.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Handler returns an http.Handler exposing the issuer over HTTP for local
// development:
//
//	GET /generate-token?username=<sub>&roles=<r1,r2>
//	GET /user-token
//	GET /admin-token
//
// Each endpoint responds with {"access_token","token_type","expires_in"}.
func (i *Issuer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /generate-token", func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			http.Error(w, "username is required", http.StatusBadRequest)
			return
		}
		var roles []string
		if raw := r.URL.Query().Get("roles"); raw != "" {
			for _, role := range strings.Split(raw, ",") {
				if role = strings.TrimSpace(role); role != "" {
					roles = append(roles, role)
				}
			}
		}
		i.serveToken(w, MintSpec{Subject: username, Roles: roles})
	})
	mux.HandleFunc("GET /user-token", func(w http.ResponseWriter, r *http.Request) {
		i.serveToken(w, MintSpec{Subject: "user-001", Roles: []string{"USER"}})
	})
	mux.HandleFunc("GET /admin-token", func(w http.ResponseWriter, r *http.Request) {
		i.serveToken(w, MintSpec{Subject: "admin-001", Roles: []string{"ADMIN", "USER"}})
	})
	return mux
}

func (i *Issuer) serveToken(w http.ResponseWriter, spec MintSpec) {
	token, err := i.Mint(spec)
	if err != nil {
		http.Error(w, "token generation failed", http.StatusInternalServerError)
		return
	}
	ttl := spec.TTL
	if ttl == 0 {
		ttl = i.TTL
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	})
}
