package ingest

import (
	"os"
	"strconv"
	"time"
)

// SyncConfig controls sync queue and worker behavior.
type SyncConfig struct {
	Concurrency   int           // Max concurrent workers. Default 2.
	MaxRetries    int           // Max retry attempts per run. Default 3.
	PollInterval  time.Duration // How often workers poll for new runs. Default 5s.
	ClaimTimeout  time.Duration // Max time a run can be in "running" before considered stuck. Default 10m.
	RetentionDays int           // How long to keep terminal runs. Default 7.
	Enabled       bool          // Whether the sync system is active. Default true.
}

// DefaultSyncConfig returns the default sync configuration.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Concurrency:   2,
		MaxRetries:    3,
		PollInterval:  5 * time.Second,
		ClaimTimeout:  10 * time.Minute,
		RetentionDays: 7,
		Enabled:       true,
	}
}

// SyncConfigFromEnv loads config from environment variables.
// ENGINE_SYNC_CONCURRENCY, ENGINE_SYNC_MAX_RETRIES,
// ENGINE_SYNC_POLL_INTERVAL_SECONDS, ENGINE_SYNC_CLAIM_TIMEOUT_MINUTES,
// ENGINE_SYNC_RETENTION_DAYS, ENGINE_SYNC_ENABLED
func SyncConfigFromEnv() *SyncConfig {
	cfg := DefaultSyncConfig()

	if v := os.Getenv("ENGINE_SYNC_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}

	if v := os.Getenv("ENGINE_SYNC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}

	if v := os.Getenv("ENGINE_SYNC_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ENGINE_SYNC_CLAIM_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClaimTimeout = time.Duration(n) * time.Minute
		}
	}

	if v := os.Getenv("ENGINE_SYNC_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}

	if v := os.Getenv("ENGINE_SYNC_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	return cfg
}
