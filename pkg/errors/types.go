package errors

import (
	"fmt"
	"log/slog"
	"maps"
	"net/http"
)

// Error is a classified failure. Values are treated as immutable:
// [Error.WithDetail] and [Error.WithDetails] return copies.
type Error struct {
	// Code is the stable machine-readable classification, e.g. TOKEN_002.
	Code Code

	// Message is written verbatim into HTTP and gRPC error bodies. It must
	// never carry key material, token contents or internal addresses.
	Message string

	// Cause is the wrapped error, reachable through errors.Is and errors.As.
	Cause error

	// Details is server-side context for logs (endpoint label, issuer,
	// kid). It is never sent to clients.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// categoryStatus maps a code category to its HTTP status. Token
// rejections and authorization denials share 403.
var categoryStatus = map[string]int{
	"VAL":     http.StatusBadRequest,
	"AUTH":    http.StatusUnauthorized,
	"TOKEN":   http.StatusForbidden,
	"AUTHZ":   http.StatusForbidden,
	"INT":     http.StatusInternalServerError,
	"UNAVAIL": http.StatusServiceUnavailable,
	"TIMEOUT": http.StatusGatewayTimeout,
}

// HTTPStatus returns the status for the code's category, or 500 for an
// unknown category.
func (e *Error) HTTPStatus() int {
	if s, ok := categoryStatus[e.Code.Category()]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithDetails returns a copy of e with details merged over its own.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	cp := *e
	cp.Details = merged
	return &cp
}

// WithDetail returns a copy of e with one more detail.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// LogValue renders the error as a group so a single "error" attribute
// carries code, reason, message, details and cause.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("reason", e.Code.Reason()),
		slog.String("message", e.Message),
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.Any(k, v))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Format supports %s, %q and %v. %+v prints the fields, including
// details and the cause.
func (e *Error) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
		if len(e.Details) > 0 {
			fmt.Fprintf(s, ", Details: %v", e.Details)
		}
		if e.Cause != nil {
			fmt.Fprintf(s, ", Cause: %+v", e.Cause)
		}
		fmt.Fprint(s, "}")
	case verb == 'q':
		fmt.Fprintf(s, "%q", e.Error())
	default:
		fmt.Fprint(s, e.Error())
	}
}
