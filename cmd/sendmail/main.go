package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/example/graph-notifier/internal/config"
	"github.com/example/graph-notifier/internal/credentials"
	"github.com/example/graph-notifier/internal/graph"
	"github.com/example/graph-notifier/internal/logger"
	"github.com/example/graph-notifier/internal/models"
	"github.com/example/graph-notifier/internal/notify"
	"github.com/example/graph-notifier/internal/secrets"
)

func main() {
	app := kingpin.New("sendmail", "Send a notification mail as a service principal")
	to := app.Flag("to", "Recipient address (repeatable)").Required().Strings()
	cc := app.Flag("cc", "CC address (repeatable)").Strings()
	bcc := app.Flag("bcc", "BCC address (repeatable)").Strings()
	subject := app.Flag("subject", "Mail subject").Required().String()
	body := app.Flag("body", "Mail body content").String()
	html := app.Flag("html", "Treat the body as HTML instead of plain text").Bool()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "sendmail").Logger()

	store, secretName := buildSecretStore(cfg, log)

	provider, err := credentials.NewProvider(credentials.Config{
		ClientID:   cfg.Identity.ClientID,
		TenantID:   cfg.Identity.TenantID,
		SecretName: secretName,
		Scope:      cfg.Identity.Scope,
	}, store, log.With().Str("component", "credential-provider").Logger(),
		credentials.WithAuthority(cfg.Identity.Authority),
		credentials.WithTimeout(time.Duration(cfg.Timeouts.TokenTimeoutSeconds)*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise credential provider")
	}

	tokens := credentials.Source(provider)
	if cfg.Cache.Enabled {
		cache := credentials.NewCache(time.Duration(cfg.Cache.SkewSeconds) * time.Second)
		cached, err := credentials.NewCachingSource(provider, provider.CacheKey(), cache, log.With().Str("component", "token-cache").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise token cache")
		}
		tokens = cached
	}

	dispatcher, err := graph.NewDispatcher(cfg.Graph.SenderUPN,
		log.With().Str("component", "dispatcher").Logger(),
		graph.WithBaseURL(cfg.Graph.BaseURL),
		graph.WithScope(cfg.Identity.Scope),
		graph.WithSaveToSentItems(cfg.Graph.SaveToSentItems),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	notifier, err := notify.New(notify.Config{
		Limits: models.Limits{
			RecipientsMax: cfg.Limits.RecipientsMax,
			SubjectMaxLen: cfg.Limits.SubjectMaxLen,
			BodyMaxBytes:  cfg.Limits.BodyMaxBytes,
		},
		TokenTimeout: time.Duration(cfg.Timeouts.TokenTimeoutSeconds) * time.Second,
		SendTimeout:  time.Duration(cfg.Timeouts.SendTimeoutSeconds) * time.Second,
	}, notify.Dependencies{
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     log.With().Str("component", "notifier").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise notifier")
	}

	bodyType := models.BodyTypeText
	if *html {
		bodyType = models.BodyTypeHTML
	}

	msg := &models.Message{
		MessageID: uuid.NewString(),
		To:        *to,
		CC:        *cc,
		BCC:       *bcc,
		Subject:   *subject,
		Body:      models.MessageBody{Type: bodyType, Content: *body},
		CreatedAt: time.Now().UTC(),
	}

	if err := notifier.Send(context.Background(), msg); err != nil {
		log.Fatal().Err(err).Str("message_id", msg.MessageID).Msg("notification failed")
	}

	log.Info().Str("message_id", msg.MessageID).Msg("notification delivered to mail API")
}

// buildSecretStore prefers the vault when configured and otherwise serves the
// inline secret through a static store under a fixed name.
func buildSecretStore(cfg *config.Config, log zerolog.Logger) (secrets.Store, string) {
	if cfg.Secrets.VaultURL != "" && cfg.Secrets.SecretName != "" {
		store, err := secrets.NewVaultStore(cfg.Secrets.VaultURL, log.With().Str("component", "vault-store").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise vault store")
		}
		return store, cfg.Secrets.SecretName
	}

	const inlineName = "client-secret"
	return secrets.NewStaticStore(map[string]string{inlineName: cfg.Secrets.Inline}), inlineName
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("sendmail init failed")
}
