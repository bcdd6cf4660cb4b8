package config_test

import (
	"strings"
	"testing"

	"github.com/example/graph-notifier/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_ID", "11111111-2222-3333-4444-555555555555")
	t.Setenv("CLIENT_ID", "66666666-7777-8888-9999-aaaaaaaaaaaa")
	t.Setenv("SENDER_UPN", "automation@example.com")
	t.Setenv("VAULT_URL", "https://vault.example.com")
	t.Setenv("CLIENT_SECRET_NAME", "sp-secret")
}

func TestLoadSuccess(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SAVE_TO_SENT_ITEMS", "false")
	t.Setenv("TOKEN_TIMEOUT_SECONDS", "5")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected app env production, got %s", cfg.App.Env)
	}
	if cfg.App.LogLevel != "warn" {
		t.Fatalf("expected log level warn, got %s", cfg.App.LogLevel)
	}
	if cfg.Identity.Scope != "https://graph.microsoft.com/.default" {
		t.Fatalf("expected default scope, got %s", cfg.Identity.Scope)
	}
	if cfg.Identity.Authority != "https://login.microsoftonline.com" {
		t.Fatalf("expected default authority, got %s", cfg.Identity.Authority)
	}
	if cfg.Graph.SaveToSentItems {
		t.Fatalf("expected save-to-sent disabled")
	}
	if cfg.Timeouts.TokenTimeoutSeconds != 5 {
		t.Fatalf("expected token timeout 5, got %d", cfg.Timeouts.TokenTimeoutSeconds)
	}
	if cfg.Timeouts.SendTimeoutSeconds != 30 {
		t.Fatalf("expected default send timeout 30, got %d", cfg.Timeouts.SendTimeoutSeconds)
	}
	if !cfg.Cache.Enabled || cfg.Cache.SkewSeconds != 120 {
		t.Fatalf("expected cache defaults, got %+v", cfg.Cache)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TENANT_ID", "")
	t.Setenv("CLIENT_ID", "")
	t.Setenv("SENDER_UPN", "")
	t.Setenv("VAULT_URL", "")
	t.Setenv("CLIENT_SECRET_NAME", "")
	t.Setenv("CLIENT_SECRET", "")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	for _, key := range []string{"TENANT_ID", "CLIENT_ID", "SENDER_UPN"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}

func TestLoadInlineSecretSatisfiesSecretConfig(t *testing.T) {
	t.Setenv("TENANT_ID", "tenant")
	t.Setenv("CLIENT_ID", "client")
	t.Setenv("SENDER_UPN", "automation@example.com")
	t.Setenv("VAULT_URL", "")
	t.Setenv("CLIENT_SECRET_NAME", "")
	t.Setenv("CLIENT_SECRET", "inline-secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Secrets.Inline != "inline-secret" {
		t.Fatalf("expected inline secret, got %q", cfg.Secrets.Inline)
	}
}

func TestLoadRejectsPartialVaultConfig(t *testing.T) {
	t.Setenv("TENANT_ID", "tenant")
	t.Setenv("CLIENT_ID", "client")
	t.Setenv("SENDER_UPN", "automation@example.com")
	t.Setenv("VAULT_URL", "https://vault.example.com")
	t.Setenv("CLIENT_SECRET_NAME", "")
	t.Setenv("CLIENT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error when secret name is missing")
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_TIMEOUT_SECONDS", "soon")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "TOKEN_TIMEOUT_SECONDS") {
		t.Fatalf("expected integer validation error, got %v", err)
	}
}
