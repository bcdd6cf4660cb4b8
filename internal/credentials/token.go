package credentials

import (
	"context"
	"time"
)

// Token is an opaque bearer credential. The scope it was granted for rides
// along so callers can assert the audience before spending a network round
// trip on a request that can only fail with an opaque 401.
type Token struct {
	Value     string
	Scope     string
	ExpiresAt time.Time
}

// Usable reports whether the token still has at least skew of lifetime left.
// Tokens without a known expiry are never considered usable for reuse.
func (t *Token) Usable(now time.Time, skew time.Duration) bool {
	if t == nil || t.Value == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

// Source produces bearer tokens. Every acquisition is an explicit call;
// implementations never perform I/O at construction time.
type Source interface {
	Token(ctx context.Context) (*Token, error)
}
