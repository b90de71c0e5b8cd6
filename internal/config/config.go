// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment gateway
	StripeKey      string        // Secret key for the Stripe gateway (optional, uses no-op gateway if not set)
	GatewayTimeout time.Duration // Per-call bound on refund/disburse requests

	// Escrow release
	SweepInterval         time.Duration
	SweepBatchSize        int
	DefaultHoldPeriodDays int
	SweepDisabled         bool // disables the background sweeper (manual trigger still works)

	// Integrations
	NotifyWebhookURL string // notification service ingest endpoint (optional)
	AlertWebhookURL  string // operator alert channel (optional, falls back to log alerts)
	OTLPEndpoint     string // OTLP gRPC collector for traces (optional)
}

// Defaults
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultSweepInterval  = time.Minute
	DefaultSweepBatchSize = 100
	DefaultHoldPeriod     = 7
	DefaultGatewayTimeout = 30 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		StripeKey:             os.Getenv("STRIPE_SECRET_KEY"),
		GatewayTimeout:        getEnvDuration("GATEWAY_TIMEOUT", DefaultGatewayTimeout),
		SweepInterval:         getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		SweepBatchSize:        int(getEnvInt64("SWEEP_BATCH_SIZE", DefaultSweepBatchSize)),
		DefaultHoldPeriodDays: int(getEnvInt64("DEFAULT_HOLD_PERIOD_DAYS", DefaultHoldPeriod)),
		SweepDisabled:         getEnvBool("SWEEP_DISABLED", false),
		NotifyWebhookURL:      os.Getenv("NOTIFY_WEBHOOK_URL"),
		AlertWebhookURL:       os.Getenv("ALERT_WEBHOOK_URL"),
		OTLPEndpoint:          os.Getenv("OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
	}
	if c.DefaultHoldPeriodDays <= 0 {
		return fmt.Errorf("DEFAULT_HOLD_PERIOD_DAYS must be positive")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.IsProduction() && c.StripeKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
