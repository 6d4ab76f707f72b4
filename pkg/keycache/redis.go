// Package keycache provides shared key-set cache tiers for
// [auth.KeyResolver], letting replicas reuse each other's key downloads.
package keycache

import (
	"context"
	"errors"
	"time"

	"github.com/StricklySoft/compliance-auth/pkg/auth"
	"github.com/StricklySoft/compliance-auth/pkg/clients/redis"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// DefaultPrefix namespaces key-set entries in a shared Redis.
const DefaultPrefix = "compliance-auth:jwks:"

// Store is the subset of [*redis.Client] the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

var _ Store = (*redis.Client)(nil)

// Redis is an [auth.SharedKeyCache] backed by Redis. Entries are keyed by
// prefix plus endpoint URL and expire with the TTL the resolver passes.
type Redis struct {
	store  Store
	prefix string
}

var _ auth.SharedKeyCache = (*Redis)(nil)

// Option configures a [Redis] cache.
type Option func(*Redis)

// WithPrefix overrides [DefaultPrefix].
func WithPrefix(prefix string) Option {
	return func(r *Redis) { r.prefix = prefix }
}

// NewRedis returns a cache writing through store.
func NewRedis(store Store, opts ...Option) *Redis {
	r := &Redis{store: store, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the stored document for url, or [auth.ErrCacheMiss].
// Other errors come back as returned by the client.
func (r *Redis) Load(ctx context.Context, url string) ([]byte, error) {
	val, err := r.store.Get(ctx, r.prefix+url)
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

// Store writes doc for url. A non-positive ttl is rejected so entries
// can never outlive the resolver's freshness window.
func (r *Redis) Store(ctx context.Context, url string, doc []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return sserr.Newf(sserr.CodeValidationRange, "keycache: ttl must be positive, got %s", ttl)
	}
	return r.store.Set(ctx, r.prefix+url, doc, ttl)
}

// Invalidate drops the entries for urls.
func (r *Redis) Invalidate(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	keys := make([]string, len(urls))
	for i, u := range urls {
		keys[i] = r.prefix + u
	}
	_, err := r.store.Del(ctx, keys...)
	return err
}
