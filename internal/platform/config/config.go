// Package config reads process configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override through the SHELTER_ACCESS_* variables.
package config

import (
	"os"
	"strings"
	"time"
)

// Backend names accepted for session and audit storage.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	JWTSigningKey string
	TokenIssuer   string

	// SessionBackend selects where live sessions are held: memory or redis.
	SessionBackend string
	// AuditBackend selects where the trail is persisted: memory or postgres.
	AuditBackend string

	PostgresURL string
	// RecordsURL points at the read-only client records mirror. Empty means
	// the seeded in-memory store, for development.
	RecordsURL string
	RedisURL   string

	// KafkaBrokers enables the best-effort security event mirror when set.
	KafkaBrokers []string
	KafkaTopic   string

	// SweepInterval bounds how long an expired session can linger before the
	// background sweeper audits and removes it.
	SweepInterval time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("SHELTER_ACCESS_ADDR", ":8080"),
		JWTSigningKey:  envOr("SHELTER_ACCESS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenIssuer:    envOr("SHELTER_ACCESS_TOKEN_ISSUER", "shelteraccess"),
		SessionBackend: envOr("SHELTER_ACCESS_SESSION_BACKEND", BackendMemory),
		AuditBackend:   envOr("SHELTER_ACCESS_AUDIT_BACKEND", BackendMemory),
		PostgresURL:    os.Getenv("SHELTER_ACCESS_POSTGRES_URL"),
		RecordsURL:     os.Getenv("SHELTER_ACCESS_RECORDS_URL"),
		RedisURL:       os.Getenv("SHELTER_ACCESS_REDIS_URL"),
		KafkaTopic:     envOr("SHELTER_ACCESS_KAFKA_TOPIC", "shelteraccess.security-events"),
		SweepInterval:  time.Minute,
	}

	if brokers := os.Getenv("SHELTER_ACCESS_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if raw := os.Getenv("SHELTER_ACCESS_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SweepInterval = d
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
