package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lockbox/internal/flagx"
	"github.com/dmitrijs2005/lockbox/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling. Durations
// rely on timex.Duration so the file can say "5m" or integer nanoseconds.
type JSONConfig struct {
	StorageBackend     string         `json:"storage_backend"`
	StoragePath        string         `json:"storage_path"`
	SessionIdleTimeout timex.Duration `json:"session_idle_timeout"`
	TokenValidity      timex.Duration `json:"token_validity"`
	CacheTTL           timex.Duration `json:"cache_ttl"`
	VerificationGrace  timex.Duration `json:"verification_grace"`
	LockoutPenalty     timex.Duration `json:"lockout_penalty"`
	MaxVerifyAttempts  int            `json:"max_verify_attempts"`
	RevealAutoHide     timex.Duration `json:"reveal_auto_hide"`
}

// parseJSON overlays cfg with values loaded from the JSON file named by the
// -c/-config flags. Absent file path means no JSON layer. Zero values in
// the file leave the corresponding defaults untouched.
func parseJSON(cfg *Config) {
	path := flagx.ConfigFileFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.StorageBackend != "" {
		cfg.StorageBackend = jc.StorageBackend
	}
	if jc.StoragePath != "" {
		cfg.StoragePath = jc.StoragePath
	}
	if jc.SessionIdleTimeout.Duration != 0 {
		cfg.SessionIdleTimeout = jc.SessionIdleTimeout.Duration
	}
	if jc.TokenValidity.Duration != 0 {
		cfg.TokenValidity = jc.TokenValidity.Duration
	}
	if jc.CacheTTL.Duration != 0 {
		cfg.CacheTTL = jc.CacheTTL.Duration
	}
	if jc.VerificationGrace.Duration != 0 {
		cfg.VerificationGrace = jc.VerificationGrace.Duration
	}
	if jc.LockoutPenalty.Duration != 0 {
		cfg.LockoutPenalty = jc.LockoutPenalty.Duration
	}
	if jc.MaxVerifyAttempts != 0 {
		cfg.MaxVerifyAttempts = jc.MaxVerifyAttempts
	}
	if jc.RevealAutoHide.Duration != 0 {
		cfg.RevealAutoHide = jc.RevealAutoHide.Duration
	}
}
