package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// KeySource supplies the key material the [Decoder] verifies signatures
// against. Implementations must be safe for concurrent use.
type KeySource interface {
	// VerificationKey returns the verification key for the given key id
	// and algorithm. kid may be empty for tokens without a kid header
	// (typical for shared-secret HMAC tokens). Returns a *[sserr.Error]
	// with code [sserr.CodeAuthenticationKeyUnknown] when no matching
	// key exists, or an unavailability code when key material cannot be
	// fetched.
	VerificationKey(ctx context.Context, kid, alg string) (any, error)
}

// ---------------------------------------------------------------------------
// StaticKeySource — fixed shared secret for HMAC verification
// ---------------------------------------------------------------------------

// StaticKeySource serves a fixed shared secret for symmetric (HMAC)
// verification. The key id is ignored: platform-issued HS256 tokens do not
// carry a kid header.
type StaticKeySource struct {
	secret Secret
}

// Compile-time assertion that StaticKeySource implements KeySource.
var _ KeySource = (*StaticKeySource)(nil)

// NewStaticKeySource creates a key source serving the given shared secret.
func NewStaticKeySource(secret Secret) *StaticKeySource {
	return &StaticKeySource{secret: secret}
}

// VerificationKey returns the shared secret as a byte slice for HMAC
// algorithms. Non-HMAC algorithms fail with
// [sserr.CodeAuthenticationKeyUnknown]: a shared secret cannot verify an
// asymmetric signature, and treating it as if it could would enable
// algorithm confusion attacks.
func (s *StaticKeySource) VerificationKey(_ context.Context, _, alg string) (any, error) {
	if !strings.HasPrefix(strings.ToUpper(alg), "HS") {
		return nil, sserr.Newf(sserr.CodeAuthenticationKeyUnknown,
			"auth: no key material for algorithm %q (shared secret verifies HMAC only)", alg)
	}
	return []byte(s.secret.Value()), nil
}

// ---------------------------------------------------------------------------
// JWKSKeySource — public keys fetched from a JWKS endpoint
// ---------------------------------------------------------------------------

// JWKSKeySource fetches and caches a JSON Web Key Set from a remote
// endpoint for asymmetric (RSA, ECDSA) verification. Keys are cached for
// the configured TTL; a key-id miss forces one refresh-and-retry before
// failing, which covers key rotation without a background refresher.
//
// JWKSKeySource is safe for concurrent use by multiple goroutines.
type JWKSKeySource struct {
	url    string
	ttl    time.Duration
	client HTTPClient

	mu        sync.RWMutex
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

// Compile-time assertion that JWKSKeySource implements KeySource.
var _ KeySource = (*JWKSKeySource)(nil)

// NewJWKSKeySource creates a key source backed by the JWKS endpoint at
// url. Keys are refreshed after ttl, or early on a key-id miss. If client
// is nil, a default [http.Client] with a 10-second timeout is used.
func NewJWKSKeySource(url string, ttl time.Duration, client HTTPClient) *JWKSKeySource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSKeySource{
		url:    url,
		ttl:    ttl,
		client: client,
	}
}

// VerificationKey returns the public key for the given key id. The lookup
// flow is: fresh cached key -> hit; miss or stale cache -> refresh and
// retry the lookup exactly once; still missing ->
// [sserr.CodeAuthenticationKeyUnknown].
//
// A fetch failure is served from the previously fetched set when one
// exists (stale keys beat no keys during a JWKS endpoint outage); with no
// usable cached set it surfaces as [sserr.CodeUnavailableDependency], or
// [sserr.CodeTimeoutDependency] when the fetch deadline elapsed.
func (j *JWKSKeySource) VerificationKey(ctx context.Context, kid, _ string) (any, error) {
	j.mu.RLock()
	fresh := j.keys != nil && time.Since(j.fetchedAt) < j.ttl
	key, exists := j.keys[kid]
	hadSet := j.keys != nil
	j.mu.RUnlock()

	if fresh && exists {
		return key, nil
	}

	// Miss or stale set: refresh once, then retry the lookup.
	if err := j.refresh(ctx); err != nil {
		if hadSet {
			// Serve the stale set rather than failing the lookup.
			j.mu.RLock()
			key, exists = j.keys[kid]
			j.mu.RUnlock()
			if exists {
				return key, nil
			}
		}
		return nil, err
	}

	j.mu.RLock()
	key, exists = j.keys[kid]
	j.mu.RUnlock()
	if !exists {
		return nil, sserr.Newf(sserr.CodeAuthenticationKeyUnknown,
			"auth: key id %q not found in JWKS after refresh", kid)
	}
	return key, nil
}

// refresh fetches the JWKS document and replaces the cached key set.
// Concurrent callers are serialized; a caller that lost the race to a
// refresh completed moments ago reuses that result instead of fetching
// again (double-checked under the write lock).
func (j *JWKSKeySource) refresh(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.keys != nil && time.Since(j.fetchedAt) < time.Second {
		return nil
	}

	keys, err := fetchJWKS(ctx, j.url, j.client)
	if err != nil {
		return err
	}

	j.keys = keys
	j.fetchedAt = time.Now()
	return nil
}

// jwksResponse represents the JSON structure of a JWKS endpoint response.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single key in a JWKS response. Only the fields
// needed for RSA and EC key reconstruction are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetchJWKS makes an HTTP GET request to the JWKS URL, parses the
// response, and constructs a map of key id to public key. Supports RSA
// and ECDSA (P-256, P-384, P-521) key types. Keys marked use:"enc" and
// keys that fail to parse are skipped.
//
// The response body is limited to 1 MB to prevent resource exhaustion.
func fetchJWKS(ctx context.Context, jwksURL string, client HTTPClient) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"auth: failed to create JWKS request")
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, sserr.Wrap(err, sserr.CodeTimeoutDependency,
				"auth: JWKS fetch timed out")
		}
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"auth: JWKS request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sserr.Newf(sserr.CodeUnavailableDependency,
			"auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"auth: failed to read JWKS response")
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"auth: failed to parse JWKS JSON")
	}

	keys := make(map[string]any, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kid == "" || k.Use == "enc" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pubKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue // Skip malformed keys.
			}
			keys[k.Kid] = pubKey
		case "EC":
			pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue // Skip malformed keys.
			}
			keys[k.Kid] = pubKey
		}
	}
	return keys, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
