package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"cgtTracker/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Ingestion defaults applied when a CSV mapping does not provide them
	DefaultExchange string
	DefaultCurrency string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.DBPath = getEnv("DB_PATH", "./data/cgt_tracker.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	cfg.DefaultExchange = strings.ToUpper(getEnv("DEFAULT_EXCHANGE", "ASX"))
	cfg.DefaultCurrency = strings.ToUpper(getEnv("DEFAULT_CURRENCY", "AUD"))
	if len(cfg.DefaultCurrency) != 3 {
		errs = append(errs, "DEFAULT_CURRENCY must be a 3-letter code")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
