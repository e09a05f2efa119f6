package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string
	LexiproEnv  string

	// Model collaborator. BaseURL may point at any OpenAI-compatible
	// endpoint (local runtimes included).
	ModelBaseURL   string
	ModelAPIKey    string
	ModelName      string
	ModelTimeoutMS int

	// Ledger.
	GenesisSeed string

	// CountTolerance is the maximum allowed disagreement between the
	// grounding verifier's counts and the corroboration report before
	// the release gate withholds. Zero disagreement by default.
	CountTolerance int

	// TenantIsolation relaxes matter-scope checks when false. Only for
	// test/staging environments; workspace scoping is never relaxed.
	TenantIsolation bool

	StorageDir string

	RateLimitRequests      int
	RateLimitWindowSeconds int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		LexiproEnv:             os.Getenv("LEXIPRO_ENV"),
		ModelBaseURL:           os.Getenv("MODEL_BASE_URL"),
		ModelAPIKey:            os.Getenv("MODEL_API_KEY"),
		ModelName:              envDefault("MODEL_NAME", "gpt-4o-mini"),
		ModelTimeoutMS:         envIntDefault("MODEL_TIMEOUT_MS", 30000),
		GenesisSeed:            os.Getenv("LEDGER_GENESIS_SEED"),
		CountTolerance:         envIntZeroDefault("COUNT_TOLERANCE", 0),
		TenantIsolation:        envBoolDefault("TENANT_ISOLATION", true),
		StorageDir:             envDefault("STORAGE_DIR", "storage"),
		RateLimitRequests:      envIntZeroDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntZeroDefault("REDIS_DB", 0),
	}
}

// ModelTimeout returns the bound applied to every external model call.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutMS) * time.Millisecond
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envIntZeroDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
