package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/example/graph-notifier/internal/faults"
	"github.com/example/graph-notifier/internal/secrets"
)

const defaultAuthority = "https://login.microsoftonline.com"

// Config enumerates the identity parameters of a client-credentials exchange.
// Scope is required: a token request without an explicit audience is the root
// cause of the mismatched-audience failures this package exists to prevent.
type Config struct {
	ClientID   string
	TenantID   string
	SecretName string
	Scope      string
}

// Option customises the provider during construction.
type Option func(*Provider)

// WithAuthority overrides the token endpoint base URL. Useful for tests.
func WithAuthority(authority string) Option {
	return func(p *Provider) {
		if strings.TrimSpace(authority) != "" {
			p.authority = strings.TrimRight(strings.TrimSpace(authority), "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client used for the token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithTimeout bounds each token acquisition round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// Provider exchanges a stored client secret for a bearer token scoped to a
// single audience. Each Token call performs a full round trip: secret lookup
// followed by the client-credentials exchange. No retry, no silent fallback
// to a different audience.
type Provider struct {
	logger     zerolog.Logger
	store      secrets.Store
	cfg        Config
	authority  string
	httpClient *http.Client
	timeout    time.Duration
}

// NewProvider constructs a credential provider.
func NewProvider(cfg Config, store secrets.Store, logger zerolog.Logger, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("credential provider: client ID is required")
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		return nil, errors.New("credential provider: tenant ID is required")
	}
	if strings.TrimSpace(cfg.SecretName) == "" {
		return nil, errors.New("credential provider: secret name is required")
	}
	if strings.TrimSpace(cfg.Scope) == "" {
		return nil, errors.New("credential provider: scope is required")
	}
	if store == nil {
		return nil, errors.New("credential provider: secret store dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &Provider{
		logger:     logger,
		store:      store,
		cfg:        cfg,
		authority:  defaultAuthority,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		timeout:    15 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// CacheKey identifies the (client, tenant, scope) triple this provider mints
// tokens for.
func (p *Provider) CacheKey() string {
	return p.cfg.ClientID + "|" + p.cfg.TenantID + "|" + p.cfg.Scope
}

// Token resolves the client secret and performs the client-credentials
// exchange. Identity-provider rejections surface the raw error payload so a
// scope problem is distinguishable from a bad secret.
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	secret, err := p.store.GetSecret(ctx, p.cfg.SecretName)
	if err != nil {
		return nil, err
	}

	cc := &clientcredentials.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: secret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.authority, url.PathEscape(p.cfg.TenantID)),
		Scopes:       []string{p.cfg.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, p.classify(err)
	}
	if tok.AccessToken == "" {
		return nil, faults.WrapCredential(errors.New("token response missing access token"))
	}

	p.logger.Debug().
		Str("tenant_id", p.cfg.TenantID).
		Str("scope", p.cfg.Scope).
		Time("expires_at", tok.Expiry).
		Msg("token acquired")

	return &Token{
		Value:     tok.AccessToken,
		Scope:     p.cfg.Scope,
		ExpiresAt: tok.Expiry,
	}, nil
}

func (p *Provider) classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		p.logger.Warn().
			Str("tenant_id", p.cfg.TenantID).
			Int("status", status).
			Msg("identity provider rejected the client credential")
		return faults.WrapCredential(faults.NewStatusError(status, string(retrieveErr.Body)))
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return faults.WrapTransport(err)
	}

	return faults.WrapCredential(err)
}
