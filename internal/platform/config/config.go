// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	HTTP          HTTPConfig
	DatabaseURL   string
	Redis         RedisConfig
	BackupsDir    string
	AdminToken    string
	JWTSigningKey string
	AuditRetry    AuditRetryConfig
}

// HTTPConfig tunes server timeouts. The read timeout default accommodates
// large backup uploads.
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig captures the optional Redis connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditRetryConfig tunes audit delivery retry behavior.
type AuditRetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CANON_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	backupsDir := os.Getenv("CANON_BACKUPS_DIR")
	if backupsDir == "" {
		backupsDir = "/var/lib/canon/backups"
	}

	jwtSigningKey := os.Getenv("CANON_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr: addr,
		HTTP: HTTPConfig{
			ReadTimeout:  envDuration("CANON_HTTP_READ_TIMEOUT", 10*time.Minute),
			WriteTimeout: envDuration("CANON_HTTP_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:  envDuration("CANON_HTTP_IDLE_TIMEOUT", 2*time.Minute),
		},
		DatabaseURL:   os.Getenv("CANON_DATABASE_URL"),
		BackupsDir:    backupsDir,
		AdminToken:    os.Getenv("CANON_ADMIN_TOKEN"),
		JWTSigningKey: jwtSigningKey,
		Redis: RedisConfig{
			URL:          os.Getenv("CANON_REDIS_URL"),
			PoolSize:     envInt("CANON_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CANON_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		AuditRetry: AuditRetryConfig{
			MaxRetries: envInt("CANON_AUDIT_MAX_RETRIES", 3),
			BaseDelay:  envDuration("CANON_AUDIT_BASE_DELAY", 100*time.Millisecond),
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
