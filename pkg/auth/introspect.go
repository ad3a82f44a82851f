package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// Introspector asks the authorization server whether a token is currently
// valid and fetches its authoritative attributes. Implementations must be
// safe for concurrent use.
type Introspector interface {
	// Introspect submits the raw token to the authority and returns its
	// verdict. A returned result with Active=false is a successful call
	// with a negative verdict; transport and endpoint failures return a
	// *[sserr.Error] with an unavailability code instead.
	Introspect(ctx context.Context, token string) (*IntrospectionResult, error)
}

// IntrospectionResult is the authorization server's verdict on a token,
// per RFC 7662. Only Active is guaranteed; the remaining members are
// optional and authoritative only when Active is true.
//
// The result is ephemeral: it is used to build a [Principal] and then
// discarded. Only the boolean validity may be cached, never the claims,
// which bounds staleness risk to "was this token seen as valid".
type IntrospectionResult struct {
	// Active reports whether the token is currently valid. This is the
	// only member an RFC 7662 endpoint must return.
	Active bool `json:"active"`

	// Standard optional members (RFC 7662 section 2.2).
	Subject   string `json:"sub,omitempty"`
	Username  string `json:"username,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	TokenID   string `json:"jti,omitempty"`

	// Roles is a flat role-name list, as rendered by the platform
	// authorization server.
	Roles []string `json:"roles,omitempty"`

	// RealmAccess carries the Keycloak-shaped role container, honored
	// when the flat Roles list is absent.
	RealmAccess *RealmAccess `json:"realm_access,omitempty"`
}

// RealmAccess is the Keycloak realm_access claim shape.
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// Principal builds the introspection-sourced [Principal] from the result.
// The subject falls back from sub to username; authorities come from the
// flat roles list, falling back to realm_access.roles, each uppercased and
// prefixed. The claims map carries the response members under their RFC
// 7662 names.
func (r *IntrospectionResult) Principal(claim, prefix string) *Principal {
	claims := make(map[string]any)
	if r.Subject != "" {
		claims["sub"] = r.Subject
	}
	if r.Username != "" {
		claims["username"] = r.Username
	}
	if r.ClientID != "" {
		claims["client_id"] = r.ClientID
	}
	if r.Scope != "" {
		claims["scope"] = r.Scope
	}
	if r.TokenType != "" {
		claims["token_type"] = r.TokenType
	}
	if r.ExpiresAt != 0 {
		claims["exp"] = r.ExpiresAt
	}
	if r.IssuedAt != 0 {
		claims["iat"] = r.IssuedAt
	}
	if r.Issuer != "" {
		claims["iss"] = r.Issuer
	}
	if r.TokenID != "" {
		claims["jti"] = r.TokenID
	}

	roles := r.Roles
	if len(roles) == 0 && r.RealmAccess != nil {
		roles = r.RealmAccess.Roles
	}
	if len(roles) > 0 {
		claims[claim] = roles
	}

	var expiresAt, issuedAt time.Time
	if r.ExpiresAt != 0 {
		expiresAt = time.Unix(r.ExpiresAt, 0)
	}
	if r.IssuedAt != 0 {
		issuedAt = time.Unix(r.IssuedAt, 0)
	}

	return newPrincipal(
		subjectFromClaims(claims),
		claims,
		authoritiesFromValue(roles, prefix),
		expiresAt,
		issuedAt,
		SourceIntrospection,
	)
}

// IntrospectionClient implements [Introspector] against an RFC 7662 token
// introspection endpoint using HTTP Basic client authentication.
//
// IntrospectionClient is safe for concurrent use by multiple goroutines.
type IntrospectionClient struct {
	endpoint     string
	clientID     string
	clientSecret Secret
	timeout      time.Duration
	client       HTTPClient
	tracer       trace.Tracer
}

// Compile-time assertion that IntrospectionClient implements Introspector.
var _ Introspector = (*IntrospectionClient)(nil)

// NewIntrospectionClient creates an introspection client for cfg's
// endpoint and credentials. If cfg.HTTPClient is nil, a default
// [http.Client] with a 10-second timeout is used; the per-call deadline
// is cfg.IntrospectionTimeout.
func NewIntrospectionClient(cfg Config) *IntrospectionClient {
	return &IntrospectionClient{
		endpoint:     cfg.IntrospectionURL,
		clientID:     cfg.IntrospectionClientID,
		clientSecret: cfg.IntrospectionClientSecret,
		timeout:      cfg.IntrospectionTimeout,
		client:       cfg.httpClient(),
		tracer:       otel.Tracer(tracerName),
	}
}

// Introspect submits the token to the endpoint as a form-encoded POST and
// decodes the verdict. The call runs under the caller's context bounded by
// the configured timeout; the raw token never appears in spans, logs, or
// error messages.
//
// Error codes returned:
//   - [sserr.CodeTimeoutIntrospection]: the call exceeded its deadline
//   - [sserr.CodeUnavailableIntrospection]: transport failure, non-200
//     status, or an undecodable response body
//
// A decoded response with active:false is returned without error; the
// caller decides how a negative verdict maps to its failure taxonomy.
func (c *IntrospectionClient) Introspect(ctx context.Context, token string) (*IntrospectionResult, error) {
	ctx, span := c.tracer.Start(ctx, "auth.introspect",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("auth.introspection_endpoint", c.endpoint))

	var retErr error
	defer func() {
		finishSpan(span, retErr)
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	form := url.Values{}
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		retErr = sserr.Wrap(err, sserr.CodeUnavailableIntrospection,
			"auth: failed to create introspection request")
		return nil, retErr
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret.Value())

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			retErr = sserr.Wrap(err, sserr.CodeTimeoutIntrospection,
				"auth: introspection call timed out")
		} else {
			retErr = sserr.Wrap(err, sserr.CodeUnavailableIntrospection,
				"auth: introspection request failed")
		}
		return nil, retErr
	}
	defer func() { _ = resp.Body.Close() }()

	// A non-200 status means the endpoint rendered no verdict. 401 or
	// 503 from the authorization server is an outage from the resource
	// server's point of view, not a statement about the token.
	if resp.StatusCode != http.StatusOK {
		retErr = sserr.Newf(sserr.CodeUnavailableIntrospection,
			"auth: introspection endpoint returned status %d", resp.StatusCode)
		return nil, retErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		retErr = sserr.Wrap(err, sserr.CodeUnavailableIntrospection,
			"auth: failed to read introspection response")
		return nil, retErr
	}

	var result IntrospectionResult
	if err := json.Unmarshal(body, &result); err != nil {
		retErr = sserr.Wrap(err, sserr.CodeUnavailableIntrospection,
			"auth: failed to parse introspection response")
		return nil, retErr
	}

	span.SetAttributes(attribute.Bool("auth.token_active", result.Active))
	return &result, nil
}
