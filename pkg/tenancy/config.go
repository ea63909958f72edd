// Package tenancy resolves which tenant an HTTP request operates on and
// carries it through the request context. It supports a single-tenant mode
// for standalone deployments and a per-request multi-tenant mode.
package tenancy

import "os"

// Mode controls how the tenant is resolved.
type Mode string

const (
	// ModeSingle uses one fixed tenant for all requests.
	ModeSingle Mode = "single"
	// ModeMulti requires the tenant on every request.
	ModeMulti Mode = "multi"
)

// DefaultTenant is the tenant used in single-tenant mode when none is
// configured.
const DefaultTenant = "default"

// Config holds tenancy configuration.
type Config struct {
	Mode Mode
	// Tenant is the fixed tenant used in single-tenant mode.
	Tenant string
}

// DefaultConfig returns single-tenant configuration.
func DefaultConfig() *Config {
	return &Config{Mode: ModeSingle, Tenant: DefaultTenant}
}

// ConfigFromEnv reads tenancy configuration from environment variables.
//
// Environment variables:
//   - ENGINE_TENANCY_MODE: "single" or "multi" (default: "single")
//   - ENGINE_TENANT: fixed tenant for single mode (default: "default")
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("ENGINE_TENANCY_MODE"); v == string(ModeMulti) {
		cfg.Mode = ModeMulti
	}
	if v := os.Getenv("ENGINE_TENANT"); v != "" {
		cfg.Tenant = v
	}
	return cfg
}
