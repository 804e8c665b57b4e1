// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken     string
	GitHubUsername  string
	SyncInterval    time.Duration
	SyncConcurrency int
	ListenAddr      string
	DBPath          string
	Mock            bool

	// SecretKey is the 32-byte AES-256 key for credential storage, or nil when
	// REVIEWSYNC_SECRET_KEY is unset.
	SecretKey []byte
}

// HasGitHubCredentials returns true when a GitHub token was supplied. The
// username is resolved from the token when it is not configured.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// GitHub credentials (REVIEWSYNC_GITHUB_TOKEN, REVIEWSYNC_GITHUB_USERNAME) are optional;
// without them the app starts with no remote until a token is provided over the API.
// Optional variables with defaults: REVIEWSYNC_SYNC_INTERVAL (5m),
// REVIEWSYNC_SYNC_CONCURRENCY (4), REVIEWSYNC_LISTEN_ADDR (127.0.0.1:8080),
// REVIEWSYNC_DB_PATH (reviewsync.db), REVIEWSYNC_MOCK (false).
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:     os.Getenv("REVIEWSYNC_GITHUB_TOKEN"),
		GitHubUsername:  os.Getenv("REVIEWSYNC_GITHUB_USERNAME"),
		SyncInterval:    5 * time.Minute,
		SyncConcurrency: 4,
		ListenAddr:      "127.0.0.1:8080",
		DBPath:          "reviewsync.db",
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("REVIEWSYNC_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("REVIEWSYNC_SYNC_INTERVAL must be positive, got %s", parsed)
		}
		cfg.SyncInterval = parsed
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_SYNC_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REVIEWSYNC_SYNC_CONCURRENCY has invalid integer %q: %w", v, err)
		}
		if parsed < 1 {
			return nil, fmt.Errorf("REVIEWSYNC_SYNC_CONCURRENCY must be at least 1, got %d", parsed)
		}
		cfg.SyncConcurrency = parsed
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_MOCK"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("REVIEWSYNC_MOCK has invalid boolean %q: %w", v, err)
		}
		cfg.Mock = parsed
	}

	if v, ok := os.LookupEnv("REVIEWSYNC_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("REVIEWSYNC_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("REVIEWSYNC_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}
