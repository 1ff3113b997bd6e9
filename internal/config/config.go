// Package config holds runtime settings for the Lockbox CLI, assembled from
// defaults, an optional JSON file and command-line flags, in that order of
// precedence.
package config

import (
	"time"

	"github.com/dmitrijs2005/lockbox/internal/storage"
)

// Config holds runtime settings for Lockbox.
type Config struct {
	// StorageBackend selects the persistence engine ("sqlite" or "bolt").
	StorageBackend string
	// StoragePath is the vault database file.
	StoragePath string

	// SessionIdleTimeout is the sliding idle window after which the
	// session expires.
	SessionIdleTimeout time.Duration
	// TokenValidity bounds locally issued identity tokens.
	TokenValidity time.Duration

	// CacheTTL bounds the decrypted in-memory credential cache.
	CacheTTL time.Duration

	// VerificationGrace is the step-up window after a successful
	// master-secret check.
	VerificationGrace time.Duration
	// LockoutPenalty is how long verification stays locked after
	// MaxVerifyAttempts consecutive failures.
	LockoutPenalty time.Duration
	// MaxVerifyAttempts is the failed-attempt budget.
	MaxVerifyAttempts int
	// RevealAutoHide re-masks a revealed password after this interval.
	RevealAutoHide time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StorageBackend = storage.BackendSQLite
	c.StoragePath = "lockbox.db"
	c.SessionIdleTimeout = 15 * time.Minute
	c.TokenValidity = 24 * time.Hour
	c.CacheTTL = 5 * time.Minute
	c.VerificationGrace = 5 * time.Minute
	c.LockoutPenalty = 5 * time.Minute
	c.MaxVerifyAttempts = 3
	c.RevealAutoHide = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
