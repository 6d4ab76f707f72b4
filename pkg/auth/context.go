package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is unexported so no other package can collide with it.
type contextKey int

const (
	principalKey contextKey = iota
	requestIDKey
)

// ContextWithPrincipal returns a copy of ctx carrying p. Gates call it
// after a successful check; later gates replace the value with an
// enriched principal.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal attached by [Authenticate]
// or a later gate. It reports false when none is attached.
//
//	p, ok := auth.PrincipalFromContext(r.Context())
//	if !ok {
//	    // not behind Authenticate
//	}
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.IsZero() {
		return Principal{}, false
	}
	return p, true
}

// MustPrincipalFromContext panics if no principal is attached. Use it
// only in handlers mounted behind [Authenticate].
func MustPrincipalFromContext(ctx context.Context) Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("auth: no principal in context; ensure Authenticate middleware is configured")
	}
	return p
}

// ContextWithRequestID returns a copy of ctx carrying the request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id set by [Authenticate].
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// TraceIDFromContext returns the active OpenTelemetry trace id as hex.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return "", false
	}
	return sc.TraceID().String(), true
}

// logAttrs returns the correlation attributes present in ctx, for use
// in error logs.
func logAttrs(ctx context.Context) []any {
	var attrs []any
	if id, ok := RequestIDFromContext(ctx); ok {
		attrs = append(attrs, "request_id", id)
	}
	if id, ok := TraceIDFromContext(ctx); ok {
		attrs = append(attrs, "trace_id", id)
	}
	return attrs
}
