// Package config loads service configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment. Secrets
// may legitimately be absent - handlers degrade to safe "not ok" responses
// instead of crashing, so a partially configured deploy stays up.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// DatabaseURL is the Postgres connection string (service credential).
	DatabaseURL string

	// SupabaseURL is the auth provider base URL.
	SupabaseURL string

	// ServiceRoleKey is the auth provider admin credential.
	ServiceRoleKey string

	// PaddleWebhookSecret is the shared webhook secret.
	PaddleWebhookSecret string

	// ResolveByEmail enables the webhook's legacy lookup-or-invite fallback
	// when custom_data carries no user id.
	ResolveByEmail bool

	// RedisAddr enables the email lookup cache when set.
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	// IdentityPageSize is the admin listing page size.
	IdentityPageSize int

	// RateLimit is the per-IP request budget per minute on the public
	// lookup/gate endpoints.
	RateLimit int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:                getEnv("PAYWALL_ADDR", ":8080"),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SupabaseURL:         strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		ServiceRoleKey:      strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		PaddleWebhookSecret: strings.TrimSpace(os.Getenv("PADDLE_WEBHOOK_SECRET")),
		ResolveByEmail:      getBool("PADDLE_RESOLVE_BY_EMAIL", false),
		RedisAddr:           strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		CacheTTL:            getDuration("IDENTITY_CACHE_TTL", 10*time.Minute),
		IdentityPageSize:    getInt("IDENTITY_PAGE_SIZE", 1000),
		RateLimit:           getInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
