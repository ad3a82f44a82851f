package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-authkit/pkg/errors"
)

// errorBody is the JSON error payload the middleware writes on rejected
// requests. The shape matches the platform API error convention.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// writeError renders err as the platform JSON error body with the HTTP
// status derived from its error code category.
func writeError(w http.ResponseWriter, err *sserr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorBody{
		Code:      err.Code.String(),
		Message:   err.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HTTPMiddleware returns an HTTP middleware that authenticates incoming
// requests with the given [TokenValidator].
//
// The middleware performs the following steps:
//  1. Extracts the bearer token from the "Authorization" header
//  2. Validates it with the validator
//  3. Stores the resulting [Principal] and the raw token in the request
//     context
//  4. Passes the enriched request to the next handler
//
// A missing token or a failed validation is rejected with the JSON error
// body and the HTTP status of the validation error's code: 401 for
// authentication failures, 503/504 when the verdict could not be obtained
// (an unreachable introspection endpoint is not the caller's fault and is
// never reported as an invalid credential).
//
// The signature is func(http.Handler) http.Handler, so the middleware
// composes with chi and other standard routers.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(auth.HTTPMiddleware(validator))
//	r.Get("/profile", handleProfile)
func HTTPMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				writeError(w, sserr.New(sserr.CodeAuthentication,
					"missing or invalid authorization header"))
				return
			}

			ctx := r.Context()
			principal, err := validator.Validate(ctx, token)
			if err != nil {
				ssErr := sserr.FromError(err)
				slog.WarnContext(ctx, "auth: token validation failed",
					"code", ssErr.Code.String(),
					"path", r.URL.Path,
				)
				writeError(w, ssErr)
				return
			}

			ctx = ContextWithPrincipal(ctx, principal)
			ctx = ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthority returns a middleware that gates a route on the
// principal holding at least one of the given authorities. It must be
// mounted after [HTTPMiddleware]: a request without a principal in its
// context is rejected with 401, and an authenticated principal lacking
// every listed authority is rejected with 403 — distinctly from an
// invalid token.
//
// Example:
//
//	r.Route("/admin", func(r chi.Router) {
//	    r.Use(auth.RequireAuthority("ROLE_ADMIN"))
//	    r.Get("/dashboard", handleDashboard)
//	})
func RequireAuthority(authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, sserr.New(sserr.CodeAuthentication,
					"authentication required"))
				return
			}
			if !principal.HasAnyAuthority(authorities...) {
				writeError(w, sserr.New(sserr.CodeAuthorization,
					"insufficient authorities"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PropagatingRoundTripper wraps an [http.RoundTripper] to relay the bearer
// token from the request context to outgoing HTTP requests. When the
// context carries a token (stored by [HTTPMiddleware] or
// [ContextWithToken]) and the outgoing request has no Authorization header
// of its own, the token is injected as "Bearer <token>".
//
// The downstream service validates the token independently; the relay
// carries the credential, not the trust.
//
// Example:
//
//	client := auth.NewPropagatingClient(nil)
//	// Requests made with this client forward the caller's bearer token.
//	resp, err := client.Do(req.WithContext(ctx))
type PropagatingRoundTripper struct {
	// wrapped is the underlying RoundTripper that performs the actual
	// HTTP call.
	wrapped http.RoundTripper
}

// NewPropagatingRoundTripper creates a PropagatingRoundTripper that wraps
// the given transport. If transport is nil, [http.DefaultTransport] is
// used.
func NewPropagatingRoundTripper(transport http.RoundTripper) *PropagatingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &PropagatingRoundTripper{wrapped: transport}
}

// NewPropagatingClient returns an [*http.Client] whose transport relays
// the context token. If base is nil, [http.DefaultTransport] is wrapped.
func NewPropagatingClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: NewPropagatingRoundTripper(base)}
}

// RoundTrip executes the HTTP request with the context's bearer token
// injected. A request that already carries an Authorization header, or a
// context without a token, passes through unmodified.
//
// RoundTrip implements the [http.RoundTripper] interface.
func (t *PropagatingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	token, ok := TokenFromContext(r.Context())
	if !ok || token == "" || r.Header.Get("Authorization") != "" {
		return t.wrapped.RoundTrip(r)
	}

	// Clone the request to avoid mutating the original.
	clone := r.Clone(r.Context())
	clone.Header.Set("Authorization", bearerPrefix+token)
	return t.wrapped.RoundTrip(clone)
}
