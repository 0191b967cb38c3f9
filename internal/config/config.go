package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const minSealSecretLen = 16

type Config struct {
	APIBaseURL             string `env:"API_BASE_URL,required"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeoutSeconds  int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	StorageDSN             string `env:"STORAGE_DSN" envDefault:"file:arena.db"`
	RedisURL               string `env:"REDIS_URL"`
	KeyringService         string `env:"KEYRING_SERVICE" envDefault:"arena-client"`
	DisableKeyring         bool   `env:"DISABLE_KEYRING" envDefault:"false"`
	CredentialSealKey      string `env:"CREDENTIAL_SEAL_KEY"`
	DefaultLocale          string `env:"DEFAULT_LOCALE" envDefault:"en"`
	PortalKeepAliveSeconds int    `env:"PORTAL_KEEPALIVE_SECONDS" envDefault:"0"`
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) PortalKeepAlive() time.Duration {
	return time.Duration(c.PortalKeepAliveSeconds) * time.Second
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIBaseURL, "/")
}

func (c *Config) Validate() error {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("API_BASE_URL must use http or https")
	}
	if parsed.Scheme == "http" && !isLocalHost(parsed.Hostname()) {
		log.Warn().Str("host", parsed.Hostname()).Msg("API_BASE_URL uses plain http: bearer tokens travel unencrypted")
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.PortalKeepAliveSeconds < 0 {
		return fmt.Errorf("PORTAL_KEEPALIVE_SECONDS must not be negative")
	}

	if c.CredentialSealKey != "" && len(c.CredentialSealKey) < minSealSecretLen {
		return fmt.Errorf("CREDENTIAL_SEAL_KEY must be 64 hex chars or a passphrase of at least %d characters", minSealSecretLen)
	}
	if c.DisableKeyring && c.CredentialSealKey == "" {
		log.Warn().Msg("keyring disabled and CREDENTIAL_SEAL_KEY empty: credentials will be stored in plaintext")
	}

	return nil
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
