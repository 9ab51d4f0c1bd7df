// Package config loads and validates the calagent service configuration
// from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration for the calagent service.
// Values are loaded from the environment; cobra flags may override
// the listener addresses.
type Config struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `env:"CALAGENT_HTTP_ADDR" envDefault:":8000"`

	// CredentialsDir is the directory holding per-user OAuth token files.
	CredentialsDir string `env:"CALAGENT_CREDENTIALS_DIR" envDefault:"credentials"`

	// GeminiAPIKey authenticates requests to the completion service.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	// CompletionModel is the model used for chat completions.
	CompletionModel string `env:"CALAGENT_COMPLETION_MODEL" envDefault:"gemini-2.5-flash"`

	// CompletionTimeout bounds a single completion call.
	CompletionTimeout time.Duration `env:"CALAGENT_COMPLETION_TIMEOUT" envDefault:"60s"`

	// GoogleClientID and GoogleClientSecret identify the OAuth client.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// OAuthRedirectURL is the registered callback URL for the
	// authorization-code flow (the /auth/callback route of this service).
	OAuthRedirectURL string `env:"GOOGLE_OAUTH_REDIRECT_URL"`

	// StateTTL bounds how long a pending OAuth state stays consumable.
	StateTTL time.Duration `env:"CALAGENT_OAUTH_STATE_TTL" envDefault:"15m"`

	// MetricsEnabled controls the dedicated metrics server.
	MetricsEnabled bool `env:"CALAGENT_METRICS_ENABLED" envDefault:"true"`

	// MetricsAddr is the listen address of the metrics server.
	MetricsAddr string `env:"CALAGENT_METRICS_ADDR" envDefault:":9090"`

	// Debug enables debug-level logging.
	Debug bool `env:"CALAGENT_DEBUG" envDefault:"false"`
}

// Load reads configuration from the environment. It does not validate;
// call Validate before starting the service.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that all settings required to serve traffic are present.
// A missing required setting is a startup-time failure; the process must
// refuse to start.
func (c *Config) Validate() error {
	var missing []string
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.OAuthRedirectURL == "" {
		missing = append(missing, "GOOGLE_OAUTH_REDIRECT_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.CompletionTimeout <= 0 {
		return errors.New("completion timeout must be positive")
	}
	if c.StateTTL <= 0 {
		return errors.New("oauth state ttl must be positive")
	}

	return nil
}
