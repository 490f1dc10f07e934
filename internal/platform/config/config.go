package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. FromEnv keeps main lean;
// defaults suit local development and every value can be overridden in
// production.
type Config struct {
	Addr     string
	LogLevel string

	// DatabaseURL selects the postgres log store. Empty runs the in-memory
	// store (dev/test only: the ledger dies with the process).
	DatabaseURL string

	// RedisURL selects the shared retry queue. Empty uses the in-process
	// queue.
	RedisURL       string
	RetryQueueSize int
	RetryInterval  time.Duration

	// KafkaBrokers enables the SIEM sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string
}

func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("CARETRAIL_ADDR", ":8080"),
		LogLevel:       envOr("CARETRAIL_LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("CARETRAIL_DATABASE_URL"),
		RedisURL:       os.Getenv("CARETRAIL_REDIS_URL"),
		RetryQueueSize: envIntOr("CARETRAIL_RETRY_QUEUE_SIZE", 1024),
		RetryInterval:  envDurationOr("CARETRAIL_RETRY_INTERVAL", 5*time.Second),
		KafkaTopic:     envOr("CARETRAIL_KAFKA_TOPIC", "caretrail.audit.security"),
		JWTSigningKey:  envOr("CARETRAIL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
	}
	if brokers := os.Getenv("CARETRAIL_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
