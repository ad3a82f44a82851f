package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// authenticates incoming calls with the given [TokenValidator].
//
// The interceptor performs the following steps:
//  1. Extracts the "authorization" metadata value (bearer token)
//  2. Validates the token using the validator
//  3. Stores the resulting [Principal] and the raw token in the request
//     context
//  4. Passes the enriched context to the handler
//
// If no authorization metadata is present or the token is invalid, the
// interceptor returns a gRPC Unauthenticated error. The detailed failure
// code is logged, not returned to the caller.
func UnaryServerInterceptor(validator TokenValidator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, validator, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// authenticates incoming streams with the given [TokenValidator].
//
// It performs the same authentication steps as [UnaryServerInterceptor]
// and wraps the stream to carry the enriched context.
func StreamServerInterceptor(validator TokenValidator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), validator, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that
// relays the bearer token from the context to outgoing request metadata.
//
// If the context carries no token, or the outgoing metadata already has an
// authorization entry, the call proceeds unmodified. The downstream
// service validates the relayed token independently.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx = relayTokenToGRPC(ctx)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// relays the bearer token from the context to outgoing stream metadata.
//
// This interceptor performs the same relay as [UnaryClientInterceptor].
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx = relayTokenToGRPC(ctx)
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// authenticateGRPC extracts the bearer token from incoming gRPC metadata,
// validates it, and enriches the context with the principal and raw token.
func authenticateGRPC(ctx context.Context, validator TokenValidator, method string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get(HeaderAuthorization)
	if len(values) == 0 {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	token := ExtractBearerToken(values[0])
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "invalid authorization format")
	}

	principal, err := validator.Validate(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "auth: token validation failed",
			"error", err,
			"method", method,
		)
		return ctx, status.Error(codes.Unauthenticated, "token validation failed")
	}

	ctx = ContextWithPrincipal(ctx, principal)
	ctx = ContextWithToken(ctx, token)
	return ctx, nil
}

// relayTokenToGRPC copies the context's bearer token into outgoing gRPC
// metadata. Existing authorization metadata is never overwritten.
func relayTokenToGRPC(ctx context.Context) context.Context {
	token, ok := TokenFromContext(ctx)
	if !ok || token == "" {
		return ctx
	}

	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if len(md.Get(HeaderAuthorization)) > 0 {
			return ctx
		}
	}

	return metadata.AppendToOutgoingContext(ctx, HeaderAuthorization, bearerPrefix+token)
}

// wrappedServerStream wraps a grpc.ServerStream to override its Context
// method. ServerStream.Context() returns the original stream context,
// which does not contain the principal added by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context containing the authenticated
// principal.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
