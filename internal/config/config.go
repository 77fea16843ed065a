// Package config loads oauthlink settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by the CLI commands. Command-line flags
// override these values.
type Config struct {
	BaseURL       string        `env:"OAUTHLINK_BASE_URL"`
	ClientID      string        `env:"OAUTHLINK_CLIENT_ID"`
	ClientSecret  string        `env:"OAUTHLINK_CLIENT_SECRET"`
	Origin        string        `env:"OAUTHLINK_ORIGIN"`
	RedirectURI   string        `env:"OAUTHLINK_REDIRECT_URI"`
	TokenEndpoint string        `env:"OAUTHLINK_TOKEN_ENDPOINT"`
	ListenAddr    string        `env:"OAUTHLINK_LISTEN_ADDR"   envDefault:"127.0.0.1:0"`
	Timeout       time.Duration `env:"OAUTHLINK_TIMEOUT"       envDefault:"5m"`
	OriginCheck   bool          `env:"OAUTHLINK_ORIGIN_CHECK"  envDefault:"true"`
	Correlate     bool          `env:"OAUTHLINK_CORRELATE"     envDefault:"true"`

	CredentialsFile string `env:"OAUTHLINK_CREDENTIALS_FILE"`

	LogLevel  string `env:"OAUTHLINK_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"OAUTHLINK_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Timeout < 0 {
		return Config{}, fmt.Errorf("OAUTHLINK_TIMEOUT must not be negative")
	}
	return cfg, nil
}
