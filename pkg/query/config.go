package query

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the query layer's as-of cache.
type Config struct {
	// CacheEnabled controls whether as-of lookups are cached. When false,
	// every lookup goes to the store.
	CacheEnabled bool

	// CacheTTL is how long an as-of answer may be served from cache. Writes
	// invalidate their series eagerly, so the TTL only bounds staleness when
	// the store is written to by another process.
	CacheTTL time.Duration

	// CacheMaxSize is the maximum number of cached as-of answers.
	CacheMaxSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CacheEnabled: true,
		CacheTTL:     60 * time.Second,
		CacheMaxSize: 10000,
	}
}

// ConfigFromEnv reads query configuration from environment variables, falling
// back to defaults for any unset variable.
//
// Environment variables:
//   - ENGINE_QUERY_CACHE_ENABLED: "true" or "false" (default: "true")
//   - ENGINE_QUERY_CACHE_TTL: duration in seconds (default: 60)
//   - ENGINE_QUERY_CACHE_MAX_SIZE: max entries (default: 10000)
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("ENGINE_QUERY_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("ENGINE_QUERY_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.CacheTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("ENGINE_QUERY_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxSize = n
		}
	}

	return cfg
}
