package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// Endpoints and families
// ---------------------------------------------------------------------------

// KeyFamily selects the ordered endpoint list used to resolve a key.
type KeyFamily int

const (
	FamilyModern KeyFamily = iota
	FamilyLegacy
)

func (f KeyFamily) String() string {
	if f == FamilyLegacy {
		return "legacy"
	}
	return "modern"
}

// Endpoint is a key-distribution endpoint. Template may contain the
// placeholders {provider} and {tenant}.
type Endpoint struct {
	Template string
	Label    string
	TTL      time.Duration
}

// URL expands the template.
func (e Endpoint) URL(provider, tenant string) string {
	return strings.NewReplacer(
		"{provider}", strings.TrimRight(provider, "/"),
		"{tenant}", tenant,
	).Replace(e.Template)
}

const (
	tenantV1Template = "{provider}/{tenant}/discovery/keys"
	tenantV2Template = "{provider}/{tenant}/discovery/v2.0/keys"
	commonV2Template = "{provider}/common/discovery/v2.0/keys"
)

// LegacyEndpoints is the legacy family's order: tenant v1.0, common,
// then tenant v2.0.
func LegacyEndpoints(ttl time.Duration) []Endpoint {
	return []Endpoint{
		{Template: tenantV1Template, Label: "tenant-v1", TTL: ttl},
		{Template: commonV2Template, Label: "common-v2", TTL: ttl},
		{Template: tenantV2Template, Label: "tenant-v2", TTL: ttl},
	}
}

// ModernEndpoints is the modern family's order: tenant v2.0, then common.
func ModernEndpoints(ttl time.Duration) []Endpoint {
	return []Endpoint{
		{Template: tenantV2Template, Label: "tenant-v2", TTL: ttl},
		{Template: commonV2Template, Label: "common-v2", TTL: ttl},
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrKeyNotFound means a key set was fetched but holds no key with
	// the requested id.
	ErrKeyNotFound = errors.New("auth: key id not found in key set")

	// ErrNoKeyMaterial means the key id is listed but carries no usable
	// public key.
	ErrNoKeyMaterial = errors.New("auth: key has no usable public key material")

	// ErrCacheMiss is returned by a [SharedKeyCache] that holds nothing
	// for the requested URL.
	ErrCacheMiss = errors.New("auth: key cache miss")
)

// KeyAttempt records one failed endpoint during resolution.
type KeyAttempt struct {
	Label string
	URL   string
	Err   error
}

// KeyResolutionError is returned when every candidate endpoint of a
// family failed to produce the requested key.
type KeyResolutionError struct {
	Kid      string
	Family   KeyFamily
	Attempts []KeyAttempt
}

func (e *KeyResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "auth: no %s endpoint produced key %q", e.Family, e.Kid)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Label, a.Err)
	}
	return b.String()
}

// Unwrap exposes each attempt's error to errors.Is and errors.As.
func (e *KeyResolutionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// HTTPClient fetches key sets. [http.Client] satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SharedKeyCache is an optional second cache tier shared between
// replicas. It stores raw documents keyed by endpoint URL. Load returns
// [ErrCacheMiss] when nothing is stored; any other error is treated as a
// storage fault.
type SharedKeyCache interface {
	Load(ctx context.Context, url string) ([]byte, error)
	Store(ctx context.Context, url string, doc []byte, ttl time.Duration) error
}

// ---------------------------------------------------------------------------
// KeyResolver
// ---------------------------------------------------------------------------

// maxKeySetSize caps a key set response body.
const maxKeySetSize = 1 << 20

// keySet maps kid to public key. A nil value means the kid is listed but
// has no usable key material.
type keySet struct {
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time
}

// sharedEntry is the document written to the shared tier. It carries the
// original fetch time so a replica does not extend the TTL.
type sharedEntry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	KeySet    json.RawMessage `json:"jwks"`
}

// KeyResolver fetches and caches signing keys from ordered endpoint
// lists. Concurrent requests for the same endpoint share one fetch. A
// cached set lacking the requested kid is refetched at most once per
// TTL for each (endpoint, kid) pair.
//
// KeyResolver is safe for concurrent use.
type KeyResolver struct {
	provider     string
	tenant       string
	families     map[KeyFamily][]Endpoint
	client       HTTPClient
	shared       SharedKeyCache
	fetchTimeout time.Duration

	cache  *expirable.LRU[string, *keySet]
	misses *expirable.LRU[string, struct{}]
	group  singleflight.Group

	tracer  trace.Tracer
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// ResolverOption customizes a [KeyResolver].
type ResolverOption func(*KeyResolver)

// WithHTTPClient sets the client used for key set requests.
func WithHTTPClient(c HTTPClient) ResolverOption {
	return func(r *KeyResolver) { r.client = c }
}

// WithSharedCache adds a shared cache tier behind the in-memory one.
func WithSharedCache(c SharedKeyCache) ResolverOption {
	return func(r *KeyResolver) { r.shared = c }
}

// WithEndpoints replaces the endpoint list of a family.
func WithEndpoints(family KeyFamily, endpoints []Endpoint) ResolverOption {
	return func(r *KeyResolver) { r.families[family] = endpoints }
}

// WithResolverMetrics records key fetch results on m.
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *KeyResolver) { r.metrics = m }
}

// WithResolverLogger sets the logger. Defaults to slog.Default().
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *KeyResolver) { r.logger = l }
}

// NewKeyResolver builds a resolver for cfg's tenant and key provider
// with the standard endpoint orders.
func NewKeyResolver(cfg Config, opts ...ResolverOption) *KeyResolver {
	ttl := cfg.KeyCacheTTL
	size := cfg.KeyCacheSize
	r := &KeyResolver{
		provider: cfg.KeyProviderURL,
		tenant:   cfg.TenantID,
		families: map[KeyFamily][]Endpoint{
			FamilyModern: ModernEndpoints(ttl),
			FamilyLegacy: LegacyEndpoints(ttl),
		},
		client:       &http.Client{},
		fetchTimeout: cfg.KeyFetchTimeout,
		cache:        expirable.NewLRU[string, *keySet](size, nil, ttl),
		misses:       expirable.NewLRU[string, struct{}](size*16, nil, ttl),
		tracer:       otel.Tracer(tracerName),
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the public key for kid, trying the family's endpoints
// in order and stopping at the first that yields it. When all fail the
// error is a *[KeyResolutionError]. A shared cache fault stops
// resolution with an [sserr.CodeInternalCache] error instead.
func (r *KeyResolver) Resolve(ctx context.Context, kid string, family KeyFamily) (crypto.PublicKey, error) {
	ctx, span := startSpan(ctx, r.tracer, "auth.ResolveKey")
	defer span.End()
	span.SetAttributes(
		attribute.String("auth.kid", kid),
		attribute.String("auth.key_family", family.String()),
	)

	rerr := &KeyResolutionError{Kid: kid, Family: family}
	for _, ep := range r.families[family] {
		u := ep.URL(r.provider, r.tenant)
		key, err := r.resolveFrom(ctx, ep, u, kid)
		if err == nil {
			span.SetAttributes(attribute.String("auth.key_endpoint", ep.Label))
			return key, nil
		}
		if sserr.IsInternal(err) {
			finishSpan(span, err)
			return nil, err
		}

		rerr.Attempts = append(rerr.Attempts, KeyAttempt{Label: ep.Label, URL: u, Err: err})
		r.logger.DebugContext(ctx, "auth: key endpoint did not yield key",
			"endpoint", ep.Label, "kid", kid, "error", err)

		// The caller is gone; trying further endpoints would return at once.
		if ctx.Err() != nil {
			break
		}
	}

	finishSpan(span, rerr)
	return nil, rerr
}

func (r *KeyResolver) resolveFrom(ctx context.Context, ep Endpoint, u, kid string) (crypto.PublicKey, error) {
	set, err := r.keySet(ctx, ep, u, kid)
	if err != nil {
		return nil, err
	}
	key, ok := set.keys[kid]
	switch {
	case !ok:
		return nil, ErrKeyNotFound
	case key == nil:
		return nil, ErrNoKeyMaterial
	}
	return key, nil
}

// keySet returns a fresh set for u, consulting memory, then the shared
// tier, then the network.
func (r *KeyResolver) keySet(ctx context.Context, ep Endpoint, u, kid string) (*keySet, error) {
	set, err := r.cached(ctx, ep, u)
	if err != nil {
		return nil, err
	}
	if set != nil {
		if _, ok := set.keys[kid]; ok || !r.firstMiss(u, kid) {
			return set, nil
		}
	}
	set, err = r.fetch(ctx, ep, u)
	if err != nil {
		return nil, err
	}
	// A set fetched without kid counts as the miss for this TTL.
	if _, ok := set.keys[kid]; !ok {
		r.misses.Add(missKey(u, kid), struct{}{})
	}
	return set, nil
}

// Invalidate forgets the in-memory key sets and recorded misses for
// urls, so the next lookup goes to the shared tier or the network. With
// no urls everything is forgotten. The shared tier is not touched.
func (r *KeyResolver) Invalidate(urls ...string) {
	if len(urls) == 0 {
		r.cache.Purge()
		r.misses.Purge()
		return
	}
	for _, u := range urls {
		r.cache.Remove(u)
		prefix := missKey(u, "")
		for _, k := range r.misses.Keys() {
			if strings.HasPrefix(k, prefix) {
				r.misses.Remove(k)
			}
		}
	}
}

func (r *KeyResolver) fresh(set *keySet, ep Endpoint) bool {
	return r.now().Sub(set.fetchedAt) < ep.TTL
}

func (r *KeyResolver) cached(ctx context.Context, ep Endpoint, u string) (*keySet, error) {
	if set, ok := r.cache.Get(u); ok && r.fresh(set, ep) {
		return set, nil
	}
	if r.shared == nil {
		return nil, nil
	}

	doc, err := r.shared.Load(ctx, u)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return nil, nil
	case err != nil:
		return nil, sserr.Wrap(err, sserr.CodeInternalCache, "auth: shared key cache load failed")
	}

	var entry sharedEntry
	if err := json.Unmarshal(doc, &entry); err != nil {
		// A corrupt entry is replaced by the next fetch.
		r.logger.WarnContext(ctx, "auth: discarding unreadable shared key cache entry", "url", u, "error", err)
		return nil, nil
	}
	keys, err := parseKeySet(entry.KeySet)
	if err != nil {
		r.logger.WarnContext(ctx, "auth: discarding unreadable shared key cache entry", "url", u, "error", err)
		return nil, nil
	}
	set := &keySet{keys: keys, fetchedAt: entry.FetchedAt}
	if !r.fresh(set, ep) {
		return nil, nil
	}
	r.cache.Add(u, set)
	return set, nil
}

// firstMiss records a miss for (u, kid) and reports whether it is the
// first one within the TTL.
func (r *KeyResolver) firstMiss(u, kid string) bool {
	k := missKey(u, kid)
	if r.misses.Contains(k) {
		return false
	}
	r.misses.Add(k, struct{}{})
	return true
}

func missKey(u, kid string) string { return u + "#" + kid }

// fetch downloads and caches a key set. Concurrent calls for the same URL
// share one download, which runs detached from the caller's cancellation
// and bounded by the fetch timeout. The caches only ever see fully
// parsed sets.
func (r *KeyResolver) fetch(ctx context.Context, ep Endpoint, u string) (*keySet, error) {
	ch := r.group.DoChan(u, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()

		doc, keys, err := r.download(fctx, u)
		if err != nil {
			r.metrics.observeKeyFetch(ep.Label, "error")
			return nil, err
		}
		r.metrics.observeKeyFetch(ep.Label, "ok")

		set := &keySet{keys: keys, fetchedAt: r.now()}
		r.cache.Add(u, set)

		if r.shared != nil {
			entry, err := json.Marshal(sharedEntry{FetchedAt: set.fetchedAt, KeySet: doc})
			if err == nil {
				err = r.shared.Store(fctx, u, entry, ep.TTL)
			}
			if err != nil {
				return nil, sserr.Wrap(err, sserr.CodeInternalCache, "auth: shared key cache store failed")
			}
		}
		return set, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*keySet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *KeyResolver) download(ctx context.Context, u string) ([]byte, map[string]crypto.PublicKey, error) {
	ctx, span := startSpan(ctx, r.tracer, "auth.FetchKeySet")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", u))

	doc, keys, err := r.get(ctx, u)
	finishSpan(span, err)
	return doc, keys, err
}

func (r *KeyResolver) get(ctx context.Context, u string) ([]byte, map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: failed to create key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: key set request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("auth: key set endpoint returned status %d", resp.StatusCode)
	}

	doc, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, nil, fmt.Errorf("auth: failed to read key set: %w", err)
	}
	keys, err := parseKeySet(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, keys, nil
}

// parseKeySet decodes a JWKS document. Keys that go-jose cannot parse
// are kept as listed-but-unusable so the resolver can tell "absent"
// from "no material".
func parseKeySet(doc []byte) (map[string]crypto.PublicKey, error) {
	var raw struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("auth: failed to parse key set: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(raw.Keys))
	for _, msg := range raw.Keys {
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(msg, &jwk); err != nil {
			var hdr struct {
				Kid string `json:"kid"`
			}
			if json.Unmarshal(msg, &hdr) == nil && hdr.Kid != "" {
				if _, dup := keys[hdr.Kid]; !dup {
					keys[hdr.Kid] = nil
				}
			}
			continue
		}
		if jwk.KeyID == "" {
			continue
		}
		if key := publicKey(jwk); key != nil || keys[jwk.KeyID] == nil {
			keys[jwk.KeyID] = key
		}
	}
	return keys, nil
}

// publicKey prefers the RSA key itself and falls back to the generic
// public accessor. It returns nil for symmetric or invalid keys.
func publicKey(jwk jose.JSONWebKey) crypto.PublicKey {
	if k, ok := jwk.Key.(*rsa.PublicKey); ok {
		return k
	}
	pub := jwk.Public()
	if !pub.Valid() {
		return nil
	}
	return pub.Key
}
