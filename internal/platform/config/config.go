package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// PostgresURL selects the contact store. Empty falls back to the
	// in-memory store (local development, unit-level runs).
	PostgresURL string

	// RedisURL enables the fingerprint resolution cache. Empty disables it.
	RedisURL string

	FingerprintAPIKey  string
	FingerprintRegion  string
	FingerprintBaseURL string
	// FingerprintCacheTTL bounds how long a resolved visitor ID is reused
	// for identical signals.
	FingerprintCacheTTL time.Duration
	// FingerprintBreakerThreshold is the number of consecutive provider
	// failures that opens the circuit; FingerprintBreakerCooldown is how
	// long it stays open before a probe is attempted.
	FingerprintBreakerThreshold int
	FingerprintBreakerCooldown  time.Duration

	// KafkaBrokers enables the Kafka audit sink. Empty keeps audit events
	// in the in-memory store.
	KafkaBrokers []string
	KafkaTopic   string

	// APIKeyHash is a bcrypt hash of the service API key. Empty disables
	// request authentication.
	APIKeyHash string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                        envOr("CONTACTLINK_ADDR", ":4000"),
		PostgresURL:                 os.Getenv("CONTACTLINK_POSTGRES_URL"),
		RedisURL:                    os.Getenv("CONTACTLINK_REDIS_URL"),
		FingerprintAPIKey:           os.Getenv("FINGERPRINT_API_KEY"),
		FingerprintRegion:           envOr("FINGERPRINT_REGION", "ap"),
		FingerprintBaseURL:          os.Getenv("FINGERPRINT_BASE_URL"),
		FingerprintCacheTTL:         durationOr("FINGERPRINT_CACHE_TTL", 5*time.Minute),
		FingerprintBreakerThreshold: intOr("FINGERPRINT_BREAKER_THRESHOLD", 5),
		FingerprintBreakerCooldown:  durationOr("FINGERPRINT_BREAKER_COOLDOWN", 30*time.Second),
		KafkaTopic:                  envOr("CONTACTLINK_AUDIT_TOPIC", "contactlink.audit"),
		APIKeyHash:                  os.Getenv("CONTACTLINK_API_KEY_HASH"),
		RequestTimeout:              durationOr("CONTACTLINK_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:             durationOr("CONTACTLINK_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if brokers := os.Getenv("CONTACTLINK_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
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

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
