package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/haulaway/authcore/internal/authcore/verification"
	"github.com/haulaway/authcore/pkg/jwtx"
)

var ErrMissingSecret = errors.New("app: AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are required")

type Config struct {
	Issuer   string   // Issuer claim for tokens
	Audience []string // Accepted audience values

	AccessSecret  string // Required: HMAC secret for access tokens (min 32 bytes)
	RefreshSecret string // Required: HMAC secret for refresh tokens (min 32 bytes)

	StoreDriver  string // Blacklist store driver (sqlite, postgres) (default: sqlite)
	DatabaseFile string // Path to SQLite database file (default: ./authcore.db)
	DatabaseDSN  string // Postgres DSN, required when StoreDriver is postgres

	AccessTTL       time.Duration // Access token lifetime (default: 15m)
	RefreshTTL      time.Duration // Refresh token lifetime (default: 168h)
	CodeTTL         time.Duration // Verification code lifetime (default: 10m)
	IdleTimeout     time.Duration // Verification idle window (default: 2m)
	SweepInterval   time.Duration // Verification sweep interval (default: 1m)
	BlockTTL        time.Duration // IP block duration (default: 5m)
	UnblockInterval time.Duration // IP auto-unblock sweep interval (default: 30s)

	ServiceKeys    []string // API keys with the highest rate ceiling
	PartnerKeys    []string // API keys with the partner ceiling
	WhitelistedIPs []string // IPs granted the whitelist ceiling

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Blacklist cleanup interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "authcore"),
		Audience: splitList(getEnvOrDefault("AUTH_AUDIENCE", "haulaway-api")),

		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		StoreDriver:  getEnvOrDefault("AUTH_STORE_DRIVER", "sqlite"),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "authcore.db"),
		DatabaseDSN:  os.Getenv("AUTH_DATABASE_DSN"),

		AccessTTL:       getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:      getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		CodeTTL:         getEnvDurationOrDefault("VERIFICATION_CODE_TTL", verification.DefaultCodeTTL),
		IdleTimeout:     getEnvDurationOrDefault("VERIFICATION_IDLE_TIMEOUT", verification.DefaultIdleTimeout),
		SweepInterval:   getEnvDurationOrDefault("VERIFICATION_SWEEP_INTERVAL", verification.DefaultSweepInterval),
		BlockTTL:        getEnvDurationOrDefault("BLOCK_TTL", 5*time.Minute),
		UnblockInterval: getEnvDurationOrDefault("UNBLOCK_INTERVAL", 30*time.Second),

		ServiceKeys:    splitList(os.Getenv("RATELIMIT_SERVICE_KEYS")),
		PartnerKeys:    splitList(os.Getenv("RATELIMIT_PARTNER_KEYS")),
		WhitelistedIPs: splitList(os.Getenv("RATELIMIT_WHITELISTED_IPS")),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects configurations the service must not start with. Weak or
// missing signing secrets are a fatal startup condition, never a warning.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return ErrMissingSecret
	}
	if len(c.AccessSecret) < jwtx.MinSecretLength || len(c.RefreshSecret) < jwtx.MinSecretLength {
		return jwtx.ErrWeakSecret
	}
	if c.StoreDriver == "postgres" && c.DatabaseDSN == "" {
		return errors.New("app: AUTH_DATABASE_DSN is required for the postgres driver")
	}
	if c.StoreDriver != "sqlite" && c.StoreDriver != "postgres" {
		return fmt.Errorf("app: unknown store driver %q", c.StoreDriver)
	}
	return nil
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

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
