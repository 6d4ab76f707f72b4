package auth

import (
	"bytes"
	"context"
	"crypto"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/compliance-auth/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// testConfig returns a valid Config for the fixture tenant with keys
// served from provider.
func testConfig(provider string) Config {
	cfg := DefaultConfig()
	cfg.TenantID = fixtures.TenantID
	cfg.ClientID = fixtures.ClientID
	cfg.AllowedDomain = fixtures.AllowedDomain
	cfg.KeyProviderURL = provider
	cfg.KeyFetchTimeout = 5 * time.Second
	return cfg
}

// testClock is a settable clock for resolver and verifier tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// verifierEnv is a verifier wired to a fixture JWKS server publishing
// one signer at the tenant v2.0 endpoint.
type verifierEnv struct {
	cfg      Config
	server   *fixtures.JWKSServer
	signer   *fixtures.Signer
	clock    *testClock
	logs     *bytes.Buffer
	verifier *Verifier
}

func newVerifierEnv(t *testing.T, opts ...VerifierOption) *verifierEnv {
	t.Helper()
	server := fixtures.NewJWKSServer(t)
	signer := fixtures.NewSigner(t, "key-1")
	server.Publish(t, fixtures.PathTenantV2, signer)

	env := &verifierEnv{
		cfg:    testConfig(server.URL),
		server: server,
		signer: signer,
		clock:  newTestClock(),
		logs:   &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	resolver := NewKeyResolver(env.cfg, WithResolverLogger(logger))
	resolver.now = env.clock.Now

	all := append([]VerifierOption{WithKeySource(resolver), WithLogger(logger)}, opts...)
	v, err := NewVerifier(env.cfg, all...)
	require.NoError(t, err)
	v.now = env.clock.Now
	env.verifier = v
	return env
}

// stubVerifier returns a fixed outcome.
type stubVerifier struct {
	principal Principal
	err       error

	mu    sync.Mutex
	calls []string
}

func (s *stubVerifier) Verify(_ context.Context, token string) (Principal, error) {
	s.mu.Lock()
	s.calls = append(s.calls, token)
	s.mu.Unlock()
	return s.principal, s.err
}

// stubUserStore serves records from a map keyed by email.
type stubUserStore struct {
	users map[string]UserRecord
	err   error

	mu       sync.Mutex
	lookups  []string
	deadline bool
}

func (s *stubUserStore) LookupUser(ctx context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	s.lookups = append(s.lookups, email)
	_, s.deadline = ctx.Deadline()
	s.mu.Unlock()

	if s.err != nil {
		return UserRecord{}, s.err
	}
	rec, ok := s.users[email]
	if !ok {
		return UserRecord{}, sserr.Newf(sserr.CodeUserNotFound, "user %s not found", email)
	}
	return rec, nil
}

// stubKeySource returns a fixed key or error.
type stubKeySource struct {
	key crypto.PublicKey
	err error
}

func (s stubKeySource) Resolve(context.Context, string, KeyFamily) (crypto.PublicKey, error) {
	return s.key, s.err
}

func testPrincipal() Principal {
	return NewPrincipal(fixtures.Subject, fixtures.Email, fixtures.DisplayName, fixtures.ObjectID)
}
