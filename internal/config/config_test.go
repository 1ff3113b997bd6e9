package config

import (
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, storage.BackendSQLite, c.StorageBackend)
	assert.Equal(t, "lockbox.db", c.StoragePath)
	assert.Equal(t, 15*time.Minute, c.SessionIdleTimeout)
	assert.Equal(t, 5*time.Minute, c.CacheTTL)
	assert.Equal(t, 5*time.Minute, c.VerificationGrace)
	assert.Equal(t, 5*time.Minute, c.LockoutPenalty)
	assert.Equal(t, 3, c.MaxVerifyAttempts)
	assert.Equal(t, 30*time.Second, c.RevealAutoHide)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, storage.BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestParseFlags_Overrides(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-b", "bolt", "-f", "custom.bolt", "-t", "600"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "bolt", cfg.StorageBackend)
	assert.Equal(t, "custom.bolt", cfg.StoragePath)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout)
}
