package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CacheOption customises the cache.
type CacheOption func(*Cache)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache holds tokens keyed by (client, tenant, scope) and refuses to serve
// entries within skew of their expiry. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	skew    time.Duration
	now     func() time.Time
	entries map[string]*Token
}

// NewCache constructs an empty cache with the given expiry skew.
func NewCache(skew time.Duration, opts ...CacheOption) *Cache {
	if skew < 0 {
		skew = 0
	}
	c := &Cache{
		skew:    skew,
		now:     time.Now,
		entries: make(map[string]*Token),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get returns a still-usable token for the key, dropping expired entries.
func (c *Cache) Get(key string) (*Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !tok.Usable(c.now(), c.skew) {
		delete(c.entries, key)
		return nil, false
	}
	return tok, true
}

// Put stores a token under the key. Tokens without a known expiry are not
// cached: reuse without an expiry bound would reintroduce the stale-token
// failure mode caching is meant to remove.
func (c *Cache) Put(key string, tok *Token) {
	if tok == nil || tok.Value == "" || tok.ExpiresAt.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tok
}

// CachingSource wraps a Source with cache lookups for a fixed key. Misses and
// expired entries fall through to a fresh acquisition.
type CachingSource struct {
	logger zerolog.Logger
	source Source
	key    string
	cache  *Cache
}

// NewCachingSource wires a source to a cache under the supplied key.
func NewCachingSource(source Source, key string, cache *Cache, logger zerolog.Logger) (*CachingSource, error) {
	if source == nil {
		return nil, errors.New("caching source: source dependency is required")
	}
	if cache == nil {
		return nil, errors.New("caching source: cache dependency is required")
	}
	if key == "" {
		return nil, errors.New("caching source: cache key is required")
	}
	return &CachingSource{logger: logger, source: source, key: key, cache: cache}, nil
}

// Token serves from the cache when possible, otherwise acquires and stores.
func (s *CachingSource) Token(ctx context.Context) (*Token, error) {
	if tok, ok := s.cache.Get(s.key); ok {
		s.logger.Debug().Str("cache_key", s.key).Msg("token served from cache")
		return tok, nil
	}

	tok, err := s.source.Token(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Put(s.key, tok)
	return tok, nil
}
