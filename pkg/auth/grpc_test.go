package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/StricklySoft/compliance-auth/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// fakeServerStream is a minimal grpc.ServerStream.
type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func TestUnaryServerInterceptor_AttachesPrincipal(t *testing.T) {
	t.Parallel()
	verifier := &stubVerifier{principal: testPrincipal()}
	interceptor := UnaryServerInterceptor(verifier)

	var got Principal
	var reqID string
	handler := func(ctx context.Context, req any) (any, error) {
		got = MustPrincipalFromContext(ctx)
		reqID, _ = RequestIDFromContext(ctx)
		return "ok", nil
	}

	ctx := incoming("authorization", "Bearer grpc-token", "x-request-id", "rpc-1")
	resp, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/compliance.v1.Risks/List"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, fixtures.Email, got.Email())
	assert.Equal(t, "rpc-1", reqID)
	assert.Equal(t, []string{"grpc-token"}, verifier.calls)
}

func TestUnaryServerInterceptor_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		code codes.Code
		msg  string
	}{
		{"no metadata", context.Background(), nil, codes.Unauthenticated, "No token provided"},
		{"no token", incoming("x-request-id", "r"), nil, codes.Unauthenticated, "No token provided"},
		{"not bearer", incoming("authorization", "Basic abc"), nil, codes.Unauthenticated, "No token provided"},
		{"rejected", incoming("authorization", "Bearer t"), sserr.New(sserr.CodeIssuerMismatch, "Token issuer not accepted"), codes.PermissionDenied, "Token issuer not accepted"},
		{"internal", incoming("authorization", "Bearer t"), sserr.Wrap(errors.New("redis down"), sserr.CodeInternalCache, "cache"), codes.Internal, "Authentication error"},
		{"plain error", incoming("authorization", "Bearer t"), errors.New("boom"), codes.Internal, "Authentication error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verifier := &stubVerifier{principal: testPrincipal(), err: tt.err}
			called := false
			handler := func(context.Context, any) (any, error) {
				called = true
				return nil, nil
			}

			_, err := UnaryServerInterceptor(verifier)(tt.ctx, nil, &grpc.UnaryServerInfo{}, handler)
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.msg, st.Message())
			assert.False(t, called)
		})
	}
}

func TestStreamServerInterceptor(t *testing.T) {
	t.Parallel()
	verifier := &stubVerifier{principal: testPrincipal()}
	interceptor := StreamServerInterceptor(verifier)

	var got Principal
	handler := func(srv any, ss grpc.ServerStream) error {
		got = MustPrincipalFromContext(ss.Context())
		return nil
	}

	ss := &fakeServerStream{ctx: incoming("authorization", "Bearer stream-token")}
	require.NoError(t, interceptor(nil, ss, &grpc.StreamServerInfo{}, handler))
	assert.Equal(t, fixtures.ObjectID, got.ObjectID())

	err := interceptor(nil, &fakeServerStream{ctx: context.Background()}, &grpc.StreamServerInfo{}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
