// Package config loads service configuration from the environment.
// Signing secrets fail closed: a missing or short secret refuses to start
// the service rather than falling back to an insecure default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"voltmesh.io/internal/auth"
)

// Recognized environment variables.
const (
	EnvAccessSecret  = "JWT_SECRET"
	EnvRefreshSecret = "JWT_REFRESH_SECRET"
	EnvAccessTTL     = "JWT_EXPIRES_IN"
	EnvRefreshTTL    = "JWT_REFRESH_EXPIRES_IN"

	EnvAddr       = "VOLTMESH_ADDR"
	EnvSessionTTL = "VOLTMESH_SESSION_TTL"
	EnvRedisURL   = "VOLTMESH_REDIS_URL"
	EnvPGDSN      = "VOLTMESH_PG_DSN"
)

const (
	defaultAddr       = ":8080"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Config holds everything cmd/api needs to assemble the service.
type Config struct {
	Addr string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// SessionTTL of zero keeps sessions live until explicit logout.
	SessionTTL time.Duration

	// RedisURL switches the session registry to the shared Redis backend.
	RedisURL string

	// PGDSN switches the credential store to PostgreSQL.
	PGDSN string
}

// Load reads and validates configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Addr:          envOr(EnvAddr, defaultAddr),
		AccessSecret:  strings.TrimSpace(os.Getenv(EnvAccessSecret)),
		RefreshSecret: strings.TrimSpace(os.Getenv(EnvRefreshSecret)),
		AccessTTL:     auth.ParseTTL(os.Getenv(EnvAccessTTL), defaultAccessTTL),
		RefreshTTL:    auth.ParseTTL(os.Getenv(EnvRefreshTTL), defaultRefreshTTL),
		SessionTTL:    auth.ParseTTL(os.Getenv(EnvSessionTTL), 0),
		RedisURL:      strings.TrimSpace(os.Getenv(EnvRedisURL)),
		PGDSN:         strings.TrimSpace(os.Getenv(EnvPGDSN)),
	}
	if cfg.AccessSecret == "" {
		return Config{}, fmt.Errorf("%s is required", EnvAccessSecret)
	}
	if cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("%s is required", EnvRefreshSecret)
	}
	if len(cfg.AccessSecret) < auth.MinSecretLen {
		return Config{}, fmt.Errorf("%s must be at least %d characters", EnvAccessSecret, auth.MinSecretLen)
	}
	if len(cfg.RefreshSecret) < auth.MinSecretLen {
		return Config{}, fmt.Errorf("%s must be at least %d characters", EnvRefreshSecret, auth.MinSecretLen)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, errors.New("access and refresh secrets must differ")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
