// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config represents the full application configuration surface.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Sales   SalesConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// StorageConfig points at the SQLite database.
type StorageConfig struct {
	DBPath string
}

// SalesConfig holds ledger and sale numbering options.
type SalesConfig struct {
	Timezone       string
	ForbidNegative bool
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	forbid, err := strconv.ParseBool(getenvWithDefault("LEDGER_FORBID_NEGATIVE", "false"))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_FORBID_NEGATIVE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("APP_PORT", "8080"),
			CORSOrigins: splitList(getenvWithDefault("CORS_ORIGINS", "http://localhost:5173")),
		},
		Storage: StorageConfig{
			DBPath: getenvWithDefault("DB_PATH", "shop.db"),
		},
		Sales: SalesConfig{
			Timezone:       getenvWithDefault("SALE_TIMEZONE", "Local"),
			ForbidNegative: forbid,
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("APP_PORT must be numeric, got %q", c.Server.Port)
	}

	if c.Storage.DBPath == "" {
		return errors.New("DB_PATH must not be empty")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("SALE_TIMEZONE: %w", err)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return nil
}

// Location resolves the sale timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sales.Timezone)
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
