package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	ResendAPIKey string
	FromEmail    string
	FromName     string

	SessionJWTSecret string

	WorkerConcurrency     int
	DispatchRatePerSecond int
	MaxDeliveryAttempts   int
	RetryBaseDelay        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		ResendAPIKey:          getEnv("RESEND_API_KEY", ""),
		FromEmail:             getEnv("FROM_EMAIL", "noreply@yourdomain.com"),
		FromName:              getEnv("FROM_NAME", "EmailAPI"),
		SessionJWTSecret:      getEnv("SESSION_JWT_SECRET", ""),
		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 5),
		DispatchRatePerSecond: getEnvInt("DISPATCH_RATE_PER_SECOND", 10),
		MaxDeliveryAttempts:   getEnvInt("MAX_DELIVERY_ATTEMPTS", 3),
		RetryBaseDelay:        getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
