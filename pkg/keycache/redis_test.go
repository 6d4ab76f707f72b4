package keycache

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/compliance-auth/internal/testutil/fixtures"
	"github.com/StricklySoft/compliance-auth/internal/testutil/redismock"
	"github.com/StricklySoft/compliance-auth/pkg/auth"
	"github.com/StricklySoft/compliance-auth/pkg/clients/redis"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

const testURL = "https://login.example.com/tenant/discovery/v2.0/keys"

func newCache(t *testing.T, opts ...Option) (*redismock.Cmdable, *Redis) {
	t.Helper()
	m := &redismock.Cmdable{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m, NewRedis(redis.NewFromClient(m, nil), opts...)
}

func TestRedis_Load(t *testing.T) {
	t.Parallel()
	m, c := newCache(t)
	m.On("Get", mock.Anything, DefaultPrefix+testURL).Return(redismock.String(`{"keys":[]}`, nil)).Once()

	doc, err := c.Load(context.Background(), testURL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":[]}`, string(doc))
}

func TestRedis_Load_Miss(t *testing.T) {
	t.Parallel()
	m, c := newCache(t)
	m.On("Get", mock.Anything, DefaultPrefix+testURL).Return(redismock.String("", goredis.Nil)).Once()

	_, err := c.Load(context.Background(), testURL)
	assert.ErrorIs(t, err, auth.ErrCacheMiss)
}

func TestRedis_Load_Fault(t *testing.T) {
	t.Parallel()
	m, c := newCache(t)
	m.On("Get", mock.Anything, mock.Anything).Return(redismock.String("", errors.New("LOADING"))).Once()

	_, err := c.Load(context.Background(), testURL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrCacheMiss)
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalCache))
}

func TestRedis_Store(t *testing.T) {
	t.Parallel()
	m, c := newCache(t, WithPrefix("test:"))
	m.On("Set", mock.Anything, "test:"+testURL, []byte("doc"), 24*time.Hour).Return(redismock.Status("OK", nil)).Once()

	require.NoError(t, c.Store(context.Background(), testURL, []byte("doc"), 24*time.Hour))
	err := c.Store(context.Background(), testURL, []byte("doc"), 0)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidationRange), "got %v", err)
}

func TestRedis_Invalidate(t *testing.T) {
	t.Parallel()
	m, c := newCache(t)
	m.On("Del", mock.Anything, []string{DefaultPrefix + "a", DefaultPrefix + "b"}).Return(redismock.Int(2, nil)).Once()

	require.NoError(t, c.Invalidate(context.Background(), "a", "b"))
	require.NoError(t, c.Invalidate(context.Background()))
}

// TestRedis_BacksResolver wires the cache behind a resolver and checks a
// second replica is served from Redis without downloading.
func TestRedis_BacksResolver(t *testing.T) {
	t.Parallel()

	server := fixtures.NewJWKSServer(t)
	signer := fixtures.NewSigner(t, "k1")
	server.Publish(t, fixtures.PathTenantV2, signer)

	cfg := auth.DefaultConfig()
	cfg.TenantID = fixtures.TenantID
	cfg.ClientID = fixtures.ClientID
	cfg.AllowedDomain = fixtures.AllowedDomain
	cfg.KeyProviderURL = server.URL

	stored := map[string]string{}
	m := &redismock.Cmdable{}
	m.On("Get", mock.Anything, mock.Anything).Return(func(_ context.Context, key string) *goredis.StringCmd {
		if v, ok := stored[key]; ok {
			return redismock.String(v, nil)
		}
		return redismock.String("", goredis.Nil)
	})
	m.On("Set", mock.Anything, mock.Anything, mock.Anything, cfg.KeyCacheTTL).Run(func(args mock.Arguments) {
		stored[args.String(1)] = string(args.Get(2).([]byte))
	}).Return(redismock.Status("OK", nil))

	cache := NewRedis(redis.NewFromClient(m, nil))

	first := auth.NewKeyResolver(cfg, auth.WithSharedCache(cache))
	key, err := first.Resolve(context.Background(), "k1", auth.FamilyModern)
	require.NoError(t, err)
	assert.Equal(t, signer.Public(), key)
	require.Len(t, stored, 1)

	second := auth.NewKeyResolver(cfg, auth.WithSharedCache(cache))
	_, err = second.Resolve(context.Background(), "k1", auth.FamilyModern)
	require.NoError(t, err)
	assert.Equal(t, 1, server.TotalHits())
}
