package credentials_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/graph-notifier/internal/credentials"
)

func TestCacheServesUntilSkew(t *testing.T) {
	current := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cache := credentials.NewCache(2*time.Minute, credentials.WithClock(func() time.Time { return current }))

	tok := &credentials.Token{
		Value:     "tok-1",
		Scope:     "https://graph.microsoft.com/.default",
		ExpiresAt: current.Add(10 * time.Minute),
	}
	cache.Put("client|tenant|scope", tok)

	if got, ok := cache.Get("client|tenant|scope"); !ok || got.Value != "tok-1" {
		t.Fatalf("expected cached token, got %v %v", got, ok)
	}

	// Within the skew window the entry is treated as expired.
	current = current.Add(9 * time.Minute)
	if _, ok := cache.Get("client|tenant|scope"); ok {
		t.Fatalf("expected entry dropped inside skew window")
	}
}

func TestCacheIgnoresTokensWithoutExpiry(t *testing.T) {
	cache := credentials.NewCache(time.Minute)
	cache.Put("key", &credentials.Token{Value: "tok"})
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected token without expiry not to be cached")
	}
}

func TestCacheKeyedByTriple(t *testing.T) {
	cache := credentials.NewCache(0)
	expiry := time.Now().Add(time.Hour)
	cache.Put("c1|t1|s1", &credentials.Token{Value: "a", ExpiresAt: expiry})
	cache.Put("c1|t1|s2", &credentials.Token{Value: "b", ExpiresAt: expiry})

	got, ok := cache.Get("c1|t1|s2")
	if !ok || got.Value != "b" {
		t.Fatalf("expected scope-specific entry, got %v %v", got, ok)
	}
}

func TestCachingSourceAvoidsRepeatExchanges(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-cached","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	provider, err := credentials.NewProvider(testConfig(), testStore(), zerolog.Nop(), credentials.WithAuthority(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache := credentials.NewCache(2 * time.Minute)
	source, err := credentials.NewCachingSource(provider, provider.CacheKey(), cache, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		tok, err := source.Token(context.Background())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if tok.Value != "tok-cached" {
			t.Fatalf("call %d: unexpected token %q", i, tok.Value)
		}
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected a single token exchange, got %d", got)
	}
}

func TestCachingSourcePropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	provider, err := credentials.NewProvider(testConfig(), testStore(), zerolog.Nop(), credentials.WithAuthority(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, err := credentials.NewCachingSource(provider, provider.CacheKey(), credentials.NewCache(0), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := source.Token(context.Background()); err == nil {
		t.Fatalf("expected error to propagate through caching source")
	}
}
