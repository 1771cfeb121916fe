package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Desk server
	BackendBaseURL      string
	BackendTimeout      time.Duration
	SessionPollInterval time.Duration

	// Development backend and seeder
	DBSource string

	// Benchmark credentials
	BackendUsername string
	BackendPassword string
}

func read() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("SESSION_POLL_INTERVAL", "5m")

	// A missing .env is normal; the environment alone is enough.
	_ = v.ReadInConfig()

	return &Config{
		Port:                v.GetString("SERVER_PORT"),
		Env:                 v.GetString("ENVIRONMENT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		BackendBaseURL:      strings.TrimSpace(v.GetString("BACKEND_BASE_URL")),
		BackendTimeout:      v.GetDuration("BACKEND_TIMEOUT"),
		SessionPollInterval: v.GetDuration("SESSION_POLL_INTERVAL"),
		DBSource:            strings.TrimSpace(v.GetString("DB_SOURCE")),
		BackendUsername:     v.GetString("BACKEND_USERNAME"),
		BackendPassword:     v.GetString("BACKEND_PASSWORD"),
	}
}

// Load reads the desk server configuration.
func Load() (*Config, error) {
	cfg := read()
	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL environment variable is required")
	}
	if cfg.BackendTimeout < 0 {
		return nil, errors.New("BACKEND_TIMEOUT must not be negative")
	}
	return cfg, nil
}

// LoadDefaults reads the configuration without requiring any key. Tools
// that take the missing values from flags check them afterwards.
func LoadDefaults() *Config {
	return read()
}

// LoadBackend reads the configuration of the development backend and seeder.
func LoadBackend() (*Config, error) {
	cfg := read()
	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}
	return cfg, nil
}
