package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

const (
	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"

	// HeaderRequestID carries the request correlation id. [Authenticate]
	// echoes a client-supplied value and assigns one when absent.
	HeaderRequestID = "X-Request-ID"
)

const bearerPrefix = "Bearer "

// maxRequestIDLength bounds client-supplied request ids; longer values
// are replaced.
const maxRequestIDLength = 128

// Gate names used as metric labels.
const (
	gateAuthenticate = "authenticate"
	gateRole         = "require_role"
	gateDepartment   = "require_department"
)

// ExtractBearerToken returns the token from an Authorization header
// value. The scheme is matched case-insensitively. It returns "" when
// the header is not a bearer credential.
func ExtractBearerToken(header string) string {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// gateOptions carries settings shared by the HTTP gates and the gRPC
// interceptors.
type gateOptions struct {
	logger        *slog.Logger
	metrics       *Metrics
	lookupTimeout time.Duration
}

// GateOption customizes a gate.
type GateOption func(*gateOptions)

// WithGateLogger sets the logger used for internal faults. Defaults to
// slog.Default().
func WithGateLogger(l *slog.Logger) GateOption {
	return func(o *gateOptions) { o.logger = l }
}

// WithGateMetrics records gate decisions on m.
func WithGateMetrics(m *Metrics) GateOption {
	return func(o *gateOptions) { o.metrics = m }
}

// WithLookupTimeout bounds each user store lookup. Defaults to 30s;
// pass Config.UserLookupTimeout.
func WithLookupTimeout(d time.Duration) GateOption {
	return func(o *gateOptions) {
		if d > 0 {
			o.lookupTimeout = d
		}
	}
}

func newGateOptions(opts []GateOption) gateOptions {
	o := gateOptions{
		logger:        slog.Default(),
		lookupTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// errorBody is the JSON shape of every gate rejection.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeRejection writes a client error with its stable message and the
// taxonomy reason. Anything that is not a client error becomes an opaque
// 500 carrying fallback, and is logged with its full cause.
func writeRejection(w http.ResponseWriter, r *http.Request, o gateOptions, err error, fallback string) {
	e := sserr.FromError(err)
	if sserr.IsClientError(e) {
		writeJSON(w, e.HTTPStatus(), errorBody{Error: e.Message, Details: e.Code.Reason()})
		return
	}
	ctx := r.Context()
	o.logger.ErrorContext(ctx, "auth: "+strings.ToLower(fallback),
		append(logAttrs(ctx), "code", e.Code, "error", err)...)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: fallback})
}

// Authenticate returns middleware that verifies the bearer token and
// attaches the resulting [Principal] to the request context.
//
//   - no bearer token: 401 {"error":"No token provided","details":"NoToken"}
//   - token rejected: 403 with the rejection reason as details
//   - internal fault: 500 {"error":"Authentication error"}
//
// Every response carries an X-Request-ID header.
//
//	r := chi.NewRouter()
//	r.Use(auth.Authenticate(verifier))
func Authenticate(verifier TokenVerifier, opts ...GateOption) func(http.Handler) http.Handler {
	o := newGateOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			ctx := ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)

			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				err := sserr.New(sserr.CodeNoToken, "No token provided")
				o.metrics.observeDecision(gateAuthenticate, err)
				writeRejection(w, r, o, err, "Authentication error")
				return
			}

			p, err := verifier.Verify(ctx, token)
			o.metrics.observeDecision(gateAuthenticate, err)
			if err != nil {
				writeRejection(w, r, o, err, "Authentication error")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, p)))
		})
	}
}
