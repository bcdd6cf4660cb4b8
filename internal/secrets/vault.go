package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/graph-notifier/internal/faults"
)

const defaultAPIVersion = "7.4"

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// VaultOption customises the behaviour of the vault store.
type VaultOption func(*VaultStore)

// WithVaultHTTPClient overrides the HTTP client used to talk to the vault.
func WithVaultHTTPClient(client HTTPClient) VaultOption {
	return func(s *VaultStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithVaultAPIVersion overrides the api-version query parameter.
func WithVaultAPIVersion(version string) VaultOption {
	return func(s *VaultStore) {
		if strings.TrimSpace(version) != "" {
			s.apiVersion = strings.TrimSpace(version)
		}
	}
}

// WithVaultAuthorization attaches a bearer credential obtained from the
// ambient identity of the runtime. The vault has its own audience; tokens
// minted for the mail API are not valid here.
func WithVaultAuthorization(token string) VaultOption {
	return func(s *VaultStore) {
		s.authorization = strings.TrimSpace(token)
	}
}

// WithVaultBodyLimit adjusts how many bytes are retained from the HTTP
// response body.
func WithVaultBodyLimit(limit int64) VaultOption {
	return func(s *VaultStore) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

// VaultStore resolves secrets from a key-vault style HTTP endpoint:
// GET {vault}/secrets/{name}?api-version=... returning {"value": ...}.
type VaultStore struct {
	logger        zerolog.Logger
	baseURL       string
	apiVersion    string
	authorization string
	httpClient    HTTPClient
	maxBodyBytes  int64
}

// NewVaultStore constructs a vault-backed secret store.
func NewVaultStore(vaultURL string, logger zerolog.Logger, opts ...VaultOption) (*VaultStore, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(vaultURL), "/")
	if trimmed == "" {
		return nil, errors.New("vault store: vault URL is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	store := &VaultStore{
		logger:       logger,
		baseURL:      trimmed,
		apiVersion:   defaultAPIVersion,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		maxBodyBytes: 16 * 1024,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store, nil
}

type vaultSecret struct {
	Value string `json:"value"`
}

// GetSecret fetches the named secret. Lookup failures carry the vault's
// status code and body so operators can tell a missing name from a
// permission problem.
func (s *VaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", faults.WrapCredential(errors.New("vault store: secret name is required"))
	}

	endpoint := fmt.Sprintf("%s/secrets/%s?api-version=%s", s.baseURL, url.PathEscape(name), url.QueryEscape(s.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", faults.WrapCredential(fmt.Errorf("vault store: new request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if s.authorization != "" {
		req.Header.Set("Authorization", "Bearer "+s.authorization)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", faults.WrapTransport(fmt.Errorf("vault store: http do: %w", err))
	}
	defer resp.Body.Close()

	body, err := s.readBody(resp.Body)
	if err != nil {
		return "", faults.WrapTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn().
			Str("secret_name", name).
			Int("status", resp.StatusCode).
			Msg("vault lookup failed")
		if resp.StatusCode == http.StatusNotFound {
			return "", faults.WrapCredential(fmt.Errorf("%w: %q: %v", ErrSecretNotFound, name, faults.NewStatusError(resp.StatusCode, body)))
		}
		return "", faults.WrapCredential(faults.NewStatusError(resp.StatusCode, body))
	}

	var secret vaultSecret
	if err := json.Unmarshal([]byte(body), &secret); err != nil {
		return "", faults.WrapCredential(fmt.Errorf("vault store: decode response: %w", err))
	}
	if secret.Value == "" {
		return "", faults.WrapCredential(fmt.Errorf("vault store: secret %q has no value", name))
	}

	s.logger.Debug().Str("secret_name", name).Msg("vault lookup succeeded")
	return secret.Value, nil
}

func (s *VaultStore) readBody(rc io.ReadCloser) (string, error) {
	if rc == nil {
		return "", nil
	}

	limit := s.maxBodyBytes
	if limit <= 0 {
		limit = 16 * 1024
	}

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return "", fmt.Errorf("vault store: read body: %w", err)
	}
	return string(data), nil
}
