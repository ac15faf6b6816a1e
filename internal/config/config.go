package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	AuthModeNone    = "none"
	AuthModeGateway = "gateway"

	EnvironmentProduction = "production"

	defaultMaxBodyBytes = 10 << 20
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Vocabulary file; empty uses the embedded default table
	VocabPath string

	// Largest accepted request body in bytes
	MaxBodyBytes int64

	// Optional conversion history. Empty disables it.
	DatabaseURL string

	// Observability
	SentryDSN           string // Sentry DSN for error tracking
	CloudWatchNamespace string // CloudWatch namespace, production only

	// Auth mode
	// - "none": No auth (self-hosted, local dev)
	// - "gateway": Trust X-User-* headers from the fronting gateway
	AuthMode string

	// set when MAX_BODY_BYTES is not a number
	maxBodyErr error
}

func Load() *Config {
	maxBody, err := getEnvInt64("MAX_BODY_BYTES", defaultMaxBodyBytes)

	return &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		Port:                getEnv("PORT", "8080"),
		VocabPath:           getEnv("VOCAB_PATH", ""),
		MaxBodyBytes:        maxBody,
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "MAGDA/OMR"),
		AuthMode:            getEnv("AUTH_MODE", AuthModeNone), // Default to no auth for self-hosted
		maxBodyErr:          err,
	}
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if c.maxBodyErr != nil {
		errs = append(errs, c.maxBodyErr)
	} else if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes))
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a number in 1..65535, got %q", c.Port))
	}

	switch c.AuthMode {
	case AuthModeNone, AuthModeGateway:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeNone, AuthModeGateway, c.AuthMode))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// IsGatewayMode returns true if running behind the gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == AuthModeGateway
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// HistoryEnabled reports whether conversions are persisted
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}
