package auth

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for auth spans.
const tracerName = "github.com/StricklySoft/compliance-auth/pkg/auth"

// maxTokenSize bounds the accepted compact token length (16 KiB).
const maxTokenSize = 16 << 10

// KeySource resolves signing keys. [*KeyResolver] implements it.
type KeySource interface {
	Resolve(ctx context.Context, kid string, family KeyFamily) (crypto.PublicKey, error)
}

// Verifier implements [TokenVerifier] for the configured tenant.
//
// Verifier is safe for concurrent use.
type Verifier struct {
	cfg     Config
	issuers issuerPolicy
	keys    KeySource
	tracer  trace.Tracer
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

var _ TokenVerifier = (*Verifier)(nil)

// VerifierOption customizes a [Verifier].
type VerifierOption func(*Verifier)

// WithKeySource replaces the default [KeyResolver].
func WithKeySource(ks KeySource) VerifierOption {
	return func(v *Verifier) { v.keys = ks }
}

// WithMetrics records verification outcomes on m. When the verifier
// builds its own resolver, key fetches are recorded there too.
func WithMetrics(m *Metrics) VerifierOption {
	return func(v *Verifier) { v.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier validates cfg and returns a Verifier. Without
// [WithKeySource] it builds a [KeyResolver] from cfg.
func NewVerifier(cfg Config, opts ...VerifierOption) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Verifier{
		cfg:     cfg,
		issuers: newIssuerPolicy(cfg),
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.keys == nil {
		v.keys = NewKeyResolver(cfg, WithResolverMetrics(v.metrics), WithResolverLogger(v.logger))
	}
	return v, nil
}

// decodedToken is a compact JWT split and base64-decoded but not
// verified.
type decodedToken struct {
	header        map[string]any
	claims        jwt.MapClaims
	signingString string
	signature     string
}

func (t *decodedToken) headerString(name string) string {
	s, _ := t.header[name].(string)
	return s
}

// Verify runs the full verification sequence and returns the accepted
// principal. Every rejection is an [*sserr.Error] with a TOKEN_ code;
// a shared key cache fault is an INT_ code.
func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	ctx, span := startSpan(ctx, v.tracer, "auth.Verify")
	defer span.End()

	p, mode, err := v.verify(ctx, span, raw)
	v.metrics.observeVerification(mode, err)
	if err != nil {
		finishSpan(span, err)
		return Principal{}, err
	}
	span.SetAttributes(attribute.String("auth.object_id", p.ObjectID()))
	return p, nil
}

// verify returns the mode label alongside the outcome. The label is
// "none" when the token was rejected before a mode was chosen.
func (v *Verifier) verify(ctx context.Context, span trace.Span, raw string) (Principal, string, error) {
	tok, err := decodeToken(raw)
	if err != nil {
		return Principal{}, "none", err
	}

	iss, _ := tok.claims["iss"].(string)
	if !v.issuers.accepts(iss) {
		return Principal{}, "none", sserr.New(sserr.CodeIssuerMismatch, "Token issuer not accepted")
	}

	mode := v.issuers.mode(iss)
	span.SetAttributes(attribute.String("auth.mode", mode.String()))

	switch mode {
	case ModeRelaxed:
		err = v.validateRelaxed(tok, iss)
	default:
		err = v.validateStrict(ctx, span, tok)
	}
	if err != nil {
		return Principal{}, mode.String(), err
	}

	nc, err := NormalizeClaims(tok.claims)
	if err != nil {
		return Principal{}, mode.String(), sserr.Wrap(err, sserr.CodeMalformedToken, "Token claims are malformed")
	}
	if err := v.checkDomain(nc.Email); err != nil {
		return Principal{}, mode.String(), err
	}

	return NewPrincipal(nc.Subject, nc.Email, nc.DisplayName, nc.ObjectID), mode.String(), nil
}

// decodeToken splits a compact token into its three segments and
// decodes header and payload without verifying anything.
func decodeToken(raw string) (*decodedToken, error) {
	malformed := func(cause error) error {
		if cause == nil {
			return sserr.New(sserr.CodeMalformedToken, "Token is malformed")
		}
		return sserr.Wrap(cause, sserr.CodeMalformedToken, "Token is malformed")
	}

	if raw == "" || len(raw) > maxTokenSize {
		return nil, malformed(nil)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, malformed(nil)
	}

	parser := jwt.NewParser()
	tok := &decodedToken{
		signingString: parts[0] + "." + parts[1],
		signature:     parts[2],
	}

	hb, err := parser.DecodeSegment(parts[0])
	if err != nil {
		return nil, malformed(err)
	}
	if err := json.Unmarshal(hb, &tok.header); err != nil || tok.header == nil {
		return nil, malformed(err)
	}

	pb, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, malformed(err)
	}
	// Unmarshal into a map fails for arrays and scalars; "null" leaves it nil.
	if err := json.Unmarshal(pb, &tok.claims); err != nil || tok.claims == nil {
		return nil, malformed(err)
	}
	return tok, nil
}

// validateRelaxed checks a legacy token without its signature: it must
// carry an exp in the future, an iat no further ahead than the allowed
// skew and the configured tenant in its issuer.
func (v *Verifier) validateRelaxed(tok *decodedToken, iss string) error {
	now := v.now()

	exp, err := tok.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return sserr.New(sserr.CodeMalformedToken, "Token has no valid expiry")
	}
	if exp.Time.Before(now) {
		return sserr.New(sserr.CodeTokenExpired, "Token has expired")
	}

	iat, err := tok.claims.GetIssuedAt()
	if err != nil {
		return sserr.New(sserr.CodeMalformedToken, "Token issue time is malformed")
	}
	if iat != nil && iat.Time.Sub(now) > v.cfg.MaxIssuedAtSkew {
		return sserr.New(sserr.CodeTokenNotYetValid, "Token is not yet valid")
	}

	if tenant, ok := ExtractTenant(iss); !ok || tenant != v.cfg.TenantID {
		return sserr.New(sserr.CodeTenantMismatch, "Token tenant not accepted")
	}
	return nil
}

// validateStrict verifies the signature with a key from the modern
// endpoint family, then the registered time claims. Audience is only
// observed.
func (v *Verifier) validateStrict(ctx context.Context, span trace.Span, tok *decodedToken) error {
	alg := tok.headerString("alg")
	if alg == "" {
		alg = jwt.SigningMethodRS256.Alg()
	}
	if strings.EqualFold(alg, "none") {
		return sserr.New(sserr.CodeInvalidSignature, "Token signature is invalid")
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return sserr.Newf(sserr.CodeInvalidSignature, "Token signing algorithm %q is not supported", alg)
	}
	// A published public key must never be usable as an HMAC secret.
	if _, symmetric := method.(*jwt.SigningMethodHMAC); symmetric {
		return sserr.Newf(sserr.CodeInvalidSignature, "Token signing algorithm %q is not supported", alg)
	}

	kid := tok.headerString("kid")
	if kid == "" {
		return sserr.New(sserr.CodeInvalidSignature, "Token has no key id")
	}

	key, err := v.keys.Resolve(ctx, kid, FamilyModern)
	if err != nil {
		if sserr.IsInternal(err) {
			return err
		}
		return sserr.Wrap(err, sserr.CodeKeyResolutionExhausted, "Token signing key could not be resolved")
	}

	sig, err := jwt.NewParser().DecodeSegment(tok.signature)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInvalidSignature, "Token signature is invalid")
	}
	if err := method.Verify(tok.signingString, sig, key); err != nil {
		return sserr.Wrap(err, sserr.CodeInvalidSignature, "Token signature is invalid")
	}

	validator := jwt.NewValidator(
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err := validator.Validate(tok.claims); err != nil {
		return classifyClaimsError(err)
	}

	v.observeAudience(ctx, span, tok)
	return nil
}

// observeAudience logs tokens minted for another audience. Delegated
// tokens, such as ones for the Graph API, are expected and accepted.
func (v *Verifier) observeAudience(ctx context.Context, span trace.Span, tok *decodedToken) {
	aud, _ := tok.claims.GetAudience()
	match := slices.Contains(aud, v.cfg.ClientID) || slices.Contains(aud, "api://"+v.cfg.ClientID)
	span.SetAttributes(attribute.Bool("auth.audience_match", match))
	if !match {
		v.logger.InfoContext(ctx, "auth: token audience does not match client id",
			append(logAttrs(ctx), "audience", []string(aud))...)
	}
}

func (v *Verifier) checkDomain(email string) error {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return sserr.New(sserr.CodeInvalidEmailFormat, "Invalid email format")
	}
	if !strings.EqualFold(domain, v.cfg.AllowedDomain) {
		return sserr.New(sserr.CodeDomainNotAllowed, "Email domain not allowed")
	}
	return nil
}

// classifyClaimsError maps jwt validation errors onto the taxonomy.
func classifyClaimsError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return sserr.Wrap(err, sserr.CodeTokenExpired, "Token has expired")
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return sserr.Wrap(err, sserr.CodeTokenNotYetValid, "Token is not yet valid")
	default:
		return sserr.Wrap(err, sserr.CodeMalformedToken, "Token claims are malformed")
	}
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan records err on span and marks it failed. A nil err is a no-op.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
