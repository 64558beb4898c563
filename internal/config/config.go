// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all env configuration vars for Ticklist.
type Config struct {
	DatabaseURL string
	// RedisURL is optional. Empty means cache and rate limits live in process memory.
	RedisURL string
	Port     string
	LogLevel slog.Level

	// Cache TTLs. Defaults: 10m single todo, 5m list pages.
	CacheShowTTL time.Duration
	CacheListTTL time.Duration

	// Rate limit policy for authenticated API calls, per user.
	// Defaults: max=60, window=1m.
	RateAPIMax    int
	RateAPIWindow time.Duration

	// Rate limit policy for register/login, per client IP.
	// Defaults: max=10, window=1m.
	RateAuthMax    int
	RateAuthWindow time.Duration

	// ListMaxPerPage caps the limit/per_page query parameter. Default 100.
	ListMaxPerPage int

	// TokenTTL is how long an issued bearer token stays valid. Default 720h (30d).
	// Zero means tokens never expire.
	TokenTTL time.Duration
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if DATABASE_URL is missing or PORT is not a number.
func LoadConfig() (*Config, error) {
	// Create config obj
	cfg := &Config{}

	// Attempt to get db url, if missing, err
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")

	// Attempt to get port num, default to 8080
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.CacheShowTTL = envDuration("CACHE_SHOW_TTL", 10*time.Minute)
	cfg.CacheListTTL = envDuration("CACHE_LIST_TTL", 5*time.Minute)

	// Invalid values fall back to the default so a bad env doesn't silently disable limiting.
	cfg.RateAPIMax = envInt("RATE_API_MAX", 60)
	cfg.RateAPIWindow = envDuration("RATE_API_WINDOW", time.Minute)
	cfg.RateAuthMax = envInt("RATE_AUTH_MAX", 10)
	cfg.RateAuthWindow = envDuration("RATE_AUTH_WINDOW", time.Minute)

	cfg.ListMaxPerPage = envInt("LIST_MAX_PER_PAGE", 100)

	// "0" is meaningful here (no expiry), so it can't go through envDuration.
	cfg.TokenTTL = 720 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.TokenTTL = d
		} else {
			slog.Warn("invalid env var, using default", "key", "TOKEN_TTL", "value", v, "default", cfg.TokenTTL)
		}
	}

	return cfg, nil
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
