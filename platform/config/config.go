// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// GoogleOAuthConfig provides the OAuth client used for Gmail token refresh.
type GoogleOAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
}

// TwilioConfig provides the process-wide fallback Twilio credentials used
// when a workspace has no SMS channel account of its own.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioFromNumber() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	GoogleClientID     string
	GoogleClientSecret string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
}

func (c *Config) GetDatabaseURL() string        { return c.DatabaseURL }
func (c *Config) GetHTTPAddr() string           { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool         { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string      { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool       { return c.CORSAllowCreds }
func (c *Config) GetGoogleClientID() string     { return c.GoogleClientID }
func (c *Config) GetGoogleClientSecret() string { return c.GoogleClientSecret }
func (c *Config) GetTwilioAccountSID() string   { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string    { return c.TwilioAuthToken }
func (c *Config) GetTwilioFromNumber() string   { return c.TwilioFromNumber }

// Load reads configuration from the environment, optionally seeded from a
// .env file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", ""))

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowAll:       containsWildcard(corsOrigins) || len(corsOrigins) == 0,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:   getEnv("TWILIO_FROM_NUMBER", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS allows all origins")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
