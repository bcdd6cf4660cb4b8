package notify

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/graph-notifier/internal/credentials"
	"github.com/example/graph-notifier/internal/models"
)

// Dispatcher is the outbound half of the pipeline. The graph package provides
// the production implementation.
type Dispatcher interface {
	Send(ctx context.Context, token *credentials.Token, msg *models.Message) error
}

// Config contains the runtime settings of the pipeline.
type Config struct {
	Limits models.Limits
	// TokenTimeout and SendTimeout bound the two network round trips
	// independently. Zero disables the corresponding bound, leaving only
	// the caller's context.
	TokenTimeout time.Duration
	SendTimeout  time.Duration
}

// Dependencies groups the collaborators a Notifier needs.
type Dependencies struct {
	Tokens     credentials.Source
	Dispatcher Dispatcher
	Logger     zerolog.Logger
}

// Notifier runs the linear pipeline: validate the message, acquire a scoped
// bearer token, dispatch. Strictly sequential — the token fetch completes
// before dispatch starts — and stateless, so unrelated callers may invoke it
// concurrently. Errors are never recovered here; the first failure aborts
// the run.
type Notifier struct {
	cfg        Config
	tokens     credentials.Source
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// New constructs a Notifier.
func New(cfg Config, deps Dependencies) (*Notifier, error) {
	if deps.Tokens == nil {
		return nil, errors.New("notifier: token source dependency is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("notifier: dispatcher dependency is required")
	}
	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	return &Notifier{
		cfg:        cfg,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}, nil
}

// Send pushes one message through the pipeline. Calling it twice with the
// same message sends two messages; there is no deduplication.
func (n *Notifier) Send(ctx context.Context, msg *models.Message) error {
	if err := msg.Validate(n.cfg.Limits); err != nil {
		return err
	}

	token, err := n.acquireToken(ctx)
	if err != nil {
		n.logger.Error().
			Str("message_id", messageID(msg)).
			Err(err).
			Msg("credential acquisition failed")
		return err
	}

	sendCtx := ctx
	if n.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, n.cfg.SendTimeout)
		defer cancel()
	}

	if err := n.dispatcher.Send(sendCtx, token, msg); err != nil {
		return err
	}

	n.logger.Info().
		Str("message_id", messageID(msg)).
		Int("recipients", len(msg.To)).
		Msg("notification sent")
	return nil
}

func (n *Notifier) acquireToken(ctx context.Context) (*credentials.Token, error) {
	if n.cfg.TokenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.TokenTimeout)
		defer cancel()
	}
	return n.tokens.Token(ctx)
}

func messageID(msg *models.Message) string {
	if msg == nil {
		return ""
	}
	return msg.MessageID
}
