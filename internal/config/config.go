// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	CatalogAPIURL      string        `env:"CATALOG_API_URL,required"`
	CatalogAPIKey      string        `env:"CATALOG_API_KEY,required"`
	ServerPort         string        `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabasePath       string        `env:"DATABASE_PATH" envDefault:"tunecache.db"`
	DownloadsPath      string        `env:"DOWNLOADS_PATH" envDefault:"/downloads"`
	MaxConcurrent      int           `env:"MAX_CONCURRENT_DOWNLOADS" envDefault:"3"`
	OfflineExpiry      time.Duration `env:"OFFLINE_EXPIRY" envDefault:"0"`
	ExpiryReapInterval time.Duration `env:"EXPIRY_REAP_INTERVAL" envDefault:"0"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CatalogAPIURL == "" {
		return fmt.Errorf("CATALOG_API_URL is required")
	}
	if c.CatalogAPIKey == "" {
		return fmt.Errorf("CATALOG_API_KEY is required")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_DOWNLOADS must be at least 1, got: %d", c.MaxConcurrent)
	}

	if c.DownloadsPath == "" {
		return fmt.Errorf("DOWNLOADS_PATH cannot be empty")
	}

	cleanPath := filepath.Clean(c.DownloadsPath)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("DOWNLOADS_PATH must be an absolute path, got: %s", c.DownloadsPath)
	}

	// Check if path exists and is a directory (only if it exists)
	if info, err := os.Stat(cleanPath); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("DOWNLOADS_PATH must be a directory, got file: %s", cleanPath)
		}
	}

	c.DownloadsPath = cleanPath

	return nil
}
