package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the API-level service configuration. Database and Redis
// settings live with their own packages.
type Config struct {
	Port          string `validate:"required,numeric"`
	Timezone      string `validate:"required"`
	LineStatusURL string `validate:"omitempty,url"`
	LineStatusTTL time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	ttl, err := time.ParseDuration(getEnv("LINE_STATUS_TTL", "5m"))
	if err != nil {
		ttl = 5 * time.Minute
	}

	cfg := &Config{
		Port:          getEnv("API_PORT", "8080"),
		Timezone:      getEnv("SERVICE_TIMEZONE", "America/Sao_Paulo"),
		LineStatusURL: getEnv("LINE_STATUS_URL", "http://www.viamobilidade.com.br/"),
		LineStatusTTL: ttl,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Location resolves the configured service timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
