package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/graph-notifier/internal/faults"
)

// ErrSecretNotFound is returned when a secret name does not resolve.
var ErrSecretNotFound = errors.New("secret not found")

// Store resolves named secrets. Implementations must not cache failures and
// must surface the backing store's diagnostic payload on error.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// StaticStore serves secrets from a fixed in-memory map. It backs local runs
// and tests, and the inline-secret configuration path.
type StaticStore struct {
	values map[string]string
}

// NewStaticStore copies the supplied map into a read-only store.
func NewStaticStore(values map[string]string) *StaticStore {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[strings.TrimSpace(k)] = v
	}
	return &StaticStore{values: copied}
}

// GetSecret returns the named secret or a credential fault when the name is
// unknown or the value is empty.
func (s *StaticStore) GetSecret(_ context.Context, name string) (string, error) {
	value, ok := s.values[strings.TrimSpace(name)]
	if !ok || value == "" {
		return "", faults.WrapCredential(fmt.Errorf("%w: %q", ErrSecretNotFound, name))
	}
	return value, nil
}
