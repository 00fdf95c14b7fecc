package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	AppEnv string

	// Remote API
	APIBaseURL      string
	APIReadTimeout  time.Duration
	APIWriteTimeout time.Duration

	// Persistent store
	StoreBackend string
	SQLitePath   string
	RedisURL     string
	RedisPrefix  string

	// Invalidation feed (optional)
	RabbitURL      string
	RabbitExchange string
	RabbitQueue    string

	// Debug surface rate limit
	DebugRLLimit  int
	DebugRLWindow time.Duration

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the environment (and .env when present) and validates the
// result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.AppEnv = getEnv("APP_ENV", "dev")

	cfg.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", ""), "/")
	cfg.APIReadTimeout = getDuration("API_READ_TIMEOUT", 10*time.Second)
	cfg.APIWriteTimeout = getDuration("API_WRITE_TIMEOUT", 15*time.Second)

	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", BackendMemory))
	cfg.SQLitePath = getEnv("SQLITE_PATH", "")
	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", "client-core:")

	cfg.RabbitURL = getEnv("RABBIT_URL", "")
	cfg.RabbitExchange = getEnv("RABBIT_EXCHANGE", "city.events")
	cfg.RabbitQueue = getEnv("RABBIT_QUEUE", "client-core.cache-invalidation")

	cfg.DebugRLLimit = getIntEnv("DEBUG_RL_LIMIT", 60)
	cfg.DebugRLWindow = getDuration("DEBUG_RL_WINDOW", time.Minute)

	cfg.TracingEnabled = getBool("TRACING_ENABLED", false)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", "localhost:4318")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("missing API_BASE_URL")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q", c.APIBaseURL)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("missing SQLITE_PATH (required when STORE_BACKEND=sqlite)")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("missing REDIS_URL (required when STORE_BACKEND=redis)")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.DebugRLLimit <= 0 {
		return fmt.Errorf("DEBUG_RL_LIMIT must be positive")
	}
	return nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getIntEnv(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
