package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the notifier. It replaces
// ambient environment lookups scattered through calling code: every field the
// pipeline needs is enumerated here and handed to components explicitly.
type Config struct {
	App      AppConfig
	Identity IdentityConfig
	Secrets  SecretConfig
	Graph    GraphConfig
	Limits   LimitConfig
	Timeouts TimeoutConfig
	Cache    CacheConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IdentityConfig identifies the service principal and the token endpoint.
type IdentityConfig struct {
	TenantID  string
	ClientID  string
	Authority string
	Scope     string
}

// SecretConfig locates the client secret. Either a vault URL plus secret name
// or an inline secret must be provided; the vault wins when both are set.
type SecretConfig struct {
	VaultURL   string
	SecretName string
	Inline     string
}

// GraphConfig describes the mail send endpoint.
type GraphConfig struct {
	BaseURL         string
	SenderUPN       string
	SaveToSentItems bool
}

// LimitConfig holds the limits used while validating outbound messages.
type LimitConfig struct {
	RecipientsMax int
	SubjectMaxLen int
	BodyMaxBytes  int
}

// TimeoutConfig bounds both network round trips of the pipeline.
type TimeoutConfig struct {
	TokenTimeoutSeconds int
	SendTimeoutSeconds  int
}

// CacheConfig controls expiry-aware token caching.
type CacheConfig struct {
	Enabled     bool
	SkewSeconds int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Identity.TenantID = ldr.getString("TENANT_ID", "", true)
	cfg.Identity.ClientID = ldr.getString("CLIENT_ID", "", true)
	cfg.Identity.Authority = ldr.getString("AUTHORITY_URL", "https://login.microsoftonline.com", false)
	cfg.Identity.Scope = ldr.getString("TOKEN_SCOPE", "https://graph.microsoft.com/.default", false)

	cfg.Secrets.VaultURL = ldr.getString("VAULT_URL", "", false)
	cfg.Secrets.SecretName = ldr.getString("CLIENT_SECRET_NAME", "", false)
	cfg.Secrets.Inline = ldr.getString("CLIENT_SECRET", "", false)

	cfg.Graph.BaseURL = ldr.getString("GRAPH_BASE_URL", "https://graph.microsoft.com", false)
	cfg.Graph.SenderUPN = ldr.getString("SENDER_UPN", "", true)
	cfg.Graph.SaveToSentItems = ldr.getBool("SAVE_TO_SENT_ITEMS", true, false)

	cfg.Limits.RecipientsMax = ldr.getInt("RECIPIENTS_MAX", 50, false)
	cfg.Limits.SubjectMaxLen = ldr.getInt("SUBJECT_MAX_LEN", 255, false)
	cfg.Limits.BodyMaxBytes = ldr.getInt("BODY_MAX_BYTES", 100000, false)

	cfg.Timeouts.TokenTimeoutSeconds = ldr.getInt("TOKEN_TIMEOUT_SECONDS", 15, false)
	cfg.Timeouts.SendTimeoutSeconds = ldr.getInt("SEND_TIMEOUT_SECONDS", 30, false)

	cfg.Cache.Enabled = ldr.getBool("TOKEN_CACHE", true, false)
	cfg.Cache.SkewSeconds = ldr.getInt("TOKEN_CACHE_SKEW_SECONDS", 120, false)

	if cfg.Secrets.Inline == "" {
		if cfg.Secrets.VaultURL == "" || cfg.Secrets.SecretName == "" {
			ldr.addError("either CLIENT_SECRET or both VAULT_URL and CLIENT_SECRET_NAME are required")
		}
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
