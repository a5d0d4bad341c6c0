// Package config loads process configuration from the environment and holds
// the runtime search switches.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"data/roster.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret string `env:"JWT_SECRET"`

	// Initial values of the search switches. Values persisted in the settings
	// table win over these once Settings.Load has run.
	FullComplexity bool `env:"USER_SEARCH_WITH_FULL_COMPLEXITY" envDefault:"false"`
	Gist           bool `env:"USER_SEARCH_WITH_GIST" envDefault:"false"`

	// Account admins may search every course roster and change settings.
	AccountAdminIDs []int64 `env:"ACCOUNT_ADMIN_IDS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: PORT %d out of range", cfg.Port)
	}

	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
