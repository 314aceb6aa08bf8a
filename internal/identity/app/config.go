package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TrustedAdminDomain string // Required: email domain allowed to hold the admin role

	DatabaseFile string // Optional: path to SQLite database file (default: ./identity.db)
	IdPIssuer    string // Optional: expected issuer claim on bearer tokens
	IdPSecret    string // Required: HS256 shared secret agreed with the identity provider
	AMQPURL      string // Optional: broker URL; empty falls back to the log sink

	NotifyTimeout        time.Duration // Optional: per-delivery timeout (default: 5s)
	InviteTTL            time.Duration // Optional: invitation lifetime (default: 7 days)
	HousekeepingInterval time.Duration // Optional: expiry sweep interval (default: 1h)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	// In dev a .env file stands in for real environment wiring. Missing
	// files are fine; the variables just stay unset.
	if getEnvOrDefault("ENV", "dev") == "dev" {
		_ = godotenv.Load()
	}

	return Config{
		TrustedAdminDomain:   os.Getenv("IDENTITY_TRUSTED_ADMIN_DOMAIN"),
		DatabaseFile:         getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		IdPIssuer:            os.Getenv("IDENTITY_IDP_ISSUER"),
		IdPSecret:            os.Getenv("IDENTITY_IDP_SECRET"),
		AMQPURL:              os.Getenv("AMQP_URL"),
		NotifyTimeout:        getEnvDurationOrDefault("NOTIFY_TIMEOUT", 5*time.Second),
		InviteTTL:            getEnvDurationOrDefault("INVITE_TTL", 7*24*time.Hour),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
