package auth

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// verifies the bearer token in the "authorization" metadata and attaches
// the [Principal] to the handler context.
//
// A missing token yields codes.Unauthenticated, a rejected token
// codes.PermissionDenied and an internal fault codes.Internal. Status
// messages carry the same client-safe text as the HTTP gate.
func UnaryServerInterceptor(verifier TokenVerifier, opts ...GateOption) grpc.UnaryServerInterceptor {
	o := newGateOptions(opts)
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, verifier, o)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// [UnaryServerInterceptor].
func StreamServerInterceptor(verifier TokenVerifier, opts ...GateOption) grpc.StreamServerInterceptor {
	o := newGateOptions(opts)
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), verifier, o)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticateGRPC(ctx context.Context, verifier TokenVerifier, o gateOptions) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	id := first(md.Get(HeaderRequestID))
	if id == "" || len(id) > maxRequestIDLength {
		id = uuid.NewString()
	}
	ctx = ContextWithRequestID(ctx, id)

	token := ExtractBearerToken(first(md.Get(HeaderAuthorization)))
	if token == "" {
		err := sserr.New(sserr.CodeNoToken, "No token provided")
		o.metrics.observeDecision(gateAuthenticate, err)
		return ctx, status.Error(codes.Unauthenticated, err.Message)
	}

	p, err := verifier.Verify(ctx, token)
	o.metrics.observeDecision(gateAuthenticate, err)
	if err != nil {
		return ctx, grpcStatus(ctx, o, err)
	}
	return ContextWithPrincipal(ctx, p), nil
}

func grpcStatus(ctx context.Context, o gateOptions, err error) error {
	e := sserr.FromError(err)
	switch {
	case sserr.IsAuthentication(e):
		return status.Error(codes.Unauthenticated, e.Message)
	case sserr.IsClientError(e):
		return status.Error(codes.PermissionDenied, e.Message)
	}
	o.logger.ErrorContext(ctx, "auth: authentication error",
		append(logAttrs(ctx), "code", e.Code, "error", err)...)
	return status.Error(codes.Internal, "Authentication error")
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// wrappedServerStream overrides Context so stream handlers see the
// principal attached by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
