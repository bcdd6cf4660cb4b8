package graph

import (
	"bytes"
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

	"github.com/example/graph-notifier/internal/credentials"
	"github.com/example/graph-notifier/internal/faults"
	"github.com/example/graph-notifier/internal/models"
)

const (
	defaultBaseURL = "https://graph.microsoft.com"
	defaultScope   = "https://graph.microsoft.com/.default"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the dispatcher during construction.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used to talk to the mail API.
func WithHTTPClient(client HTTPClient) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithBaseURL sets the base API URL. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(d *Dispatcher) {
		if strings.TrimSpace(baseURL) != "" {
			d.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		}
	}
}

// WithScope sets the audience tokens must declare to be accepted by this
// dispatcher.
func WithScope(scope string) Option {
	return func(d *Dispatcher) {
		if strings.TrimSpace(scope) != "" {
			d.scope = strings.TrimSpace(scope)
		}
	}
}

// WithSaveToSentItems controls whether sent messages are kept in the sender's
// Sent Items folder.
func WithSaveToSentItems(save bool) Option {
	return func(d *Dispatcher) {
		d.saveToSentItems = save
	}
}

// WithBodyLimit adjusts how many bytes are retained from error responses.
func WithBodyLimit(limit int64) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.maxBodyBytes = limit
		}
	}
}

// Dispatcher submits messages to the sendMail endpoint. The contract is hard:
// either the remote service accepts the message with a success status, or an
// error is returned that aborts the caller. No retry, no backoff, no
// fallback audience, no deduplication — two calls send two messages.
type Dispatcher struct {
	logger          zerolog.Logger
	sender          string
	baseURL         string
	scope           string
	saveToSentItems bool
	httpClient      HTTPClient
	maxBodyBytes    int64
}

// NewDispatcher constructs a dispatcher for a single sender mailbox. The
// sender is the mailbox the message is sent as, distinct from the identity
// that authenticates.
func NewDispatcher(sender string, logger zerolog.Logger, opts ...Option) (*Dispatcher, error) {
	if strings.TrimSpace(sender) == "" {
		return nil, errors.New("graph dispatcher: sender mailbox is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	d := &Dispatcher{
		logger:          logger,
		sender:          strings.TrimSpace(sender),
		baseURL:         defaultBaseURL,
		scope:           defaultScope,
		saveToSentItems: true,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		maxBodyBytes:    16 * 1024,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d, nil
}

// Scope returns the audience this dispatcher requires of tokens.
func (d *Dispatcher) Scope() string { return d.scope }

// Send submits the message authenticated by the supplied token. The token's
// declared scope must match the dispatcher's audience; mixing audiences
// inside one logical operation fails here, at call time, instead of as an
// opaque 401 from the remote service.
func (d *Dispatcher) Send(ctx context.Context, token *credentials.Token, msg *models.Message) error {
	if msg == nil {
		return errors.New("graph dispatcher: message is required")
	}
	if token == nil || token.Value == "" {
		return faults.WrapCredential(errors.New("graph dispatcher: bearer token is required"))
	}
	if token.Scope != d.scope {
		return faults.WrapScopeMismatch(fmt.Errorf("token scoped to %q, endpoint expects %q", token.Scope, d.scope))
	}

	payload := buildSendMailRequest(msg, d.saveToSentItems)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("graph dispatcher: encode payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1.0/users/%s/sendMail", d.baseURL, url.PathEscape(d.sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("graph dispatcher: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return faults.WrapTransport(fmt.Errorf("graph dispatcher: http do: %w", err))
	}
	defer resp.Body.Close()

	body, err := d.readBody(resp.Body)
	if err != nil {
		return faults.WrapTransport(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.logger.Info().
			Str("message_id", msg.MessageID).
			Str("sender", d.sender).
			Int("recipients", len(msg.To)+len(msg.CC)+len(msg.BCC)).
			Int("status", resp.StatusCode).
			Msg("message accepted for delivery")
		return nil
	}

	statusErr := faults.NewStatusError(resp.StatusCode, body)
	parsed := parseErrorBody(body)
	d.logger.Warn().
		Str("message_id", msg.MessageID).
		Str("sender", d.sender).
		Int("status", resp.StatusCode).
		Str("remote_code", parsed.Error.Code).
		Msg("send rejected")

	// 401/403 on a correctly built request is the signature of a token
	// minted for the wrong audience, not a malformed message.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return faults.WrapScopeMismatch(statusErr)
	}
	return faults.WrapRejected(statusErr)
}

func (d *Dispatcher) readBody(rc io.ReadCloser) (string, error) {
	if rc == nil {
		return "", nil
	}

	limit := d.maxBodyBytes
	if limit <= 0 {
		limit = 16 * 1024
	}

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return "", fmt.Errorf("graph dispatcher: read body: %w", err)
	}
	return string(data), nil
}

func parseErrorBody(body string) errorResponse {
	var parsed errorResponse
	if strings.TrimSpace(body) == "" {
		return parsed
	}
	_ = json.Unmarshal([]byte(body), &parsed)
	return parsed
}
