package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the terminal service settings.
type Config struct {
	Env                string
	HTTPPort           string
	BackendURL         string
	BackendTimeout     time.Duration
	ClientCacheTTL     time.Duration
	RedisAddr          string
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables, falling back to defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:        getEnv("APP_ENV", "production"),
		HTTPPort:   getEnv("HTTP_PORT", "8081"),
		BackendURL: getEnv("BACKEND_URL", "http://localhost:8080/api"),
		RedisAddr:  getEnv("REDIS_ADDR", ""),
	}

	var err error
	if cfg.BackendTimeout, err = getDuration("BACKEND_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ClientCacheTTL, err = getDuration("CLIENT_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerOpenTimeout, err = getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	failures, err := strconv.ParseUint(getEnv("BREAKER_MAX_FAILURES", "5"), 10, 32)
	if err != nil || failures == 0 {
		return nil, fmt.Errorf("invalid BREAKER_MAX_FAILURES: must be a positive integer")
	}
	cfg.BreakerMaxFailures = uint32(failures)

	return cfg, nil
}

// Development reports whether APP_ENV asks for development logging.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, value)
	}
	return d, nil
}
