package tenancy

import (
	"fmt"
	"net/http"
	"regexp"
)

// maxTenantLen is the maximum length for a tenant name.
const maxTenantLen = 63

// tenantRe validates tenant format: lowercase alphanumeric and hyphens, must
// start and end with an alphanumeric character (DNS label convention).
var tenantRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// TenantQueryParam is the query parameter name used for tenant resolution.
const TenantQueryParam = "tenant"

// TenantHeader is the HTTP header used for tenant resolution.
const TenantHeader = "X-Tenant"

// Resolver resolves the tenant from an HTTP request.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// SingleTenantResolver always returns one fixed tenant.
type SingleTenantResolver struct {
	Tenant string
}

// Resolve returns the configured tenant.
func (s SingleTenantResolver) Resolve(_ *http.Request) (string, error) {
	if s.Tenant == "" {
		return DefaultTenant, nil
	}
	return s.Tenant, nil
}

// RequestTenantResolver reads the tenant from the request query parameter or
// header. In multi-tenant mode the tenant is always required.
type RequestTenantResolver struct{}

// Resolve extracts the tenant from the request. It checks the query
// parameter first, then falls back to the X-Tenant header. Returns an error
// if the tenant is missing or invalid.
func (RequestTenantResolver) Resolve(r *http.Request) (string, error) {
	tenant := r.URL.Query().Get(TenantQueryParam)
	if tenant == "" {
		tenant = r.Header.Get(TenantHeader)
	}

	if tenant == "" {
		return "", fmt.Errorf("tenant is required in multi-tenant mode (use ?tenant= query param or X-Tenant header)")
	}

	if err := validateTenant(tenant); err != nil {
		return "", err
	}

	return tenant, nil
}

// validateTenant checks that a tenant string conforms to DNS label rules:
// lowercase alphanumeric and hyphens, 1-63 characters, starts and ends with
// an alphanumeric character.
func validateTenant(tenant string) error {
	if len(tenant) > maxTenantLen {
		return fmt.Errorf("tenant %q exceeds maximum length of %d characters", tenant, maxTenantLen)
	}
	if !tenantRe.MatchString(tenant) {
		return fmt.Errorf("tenant %q is invalid: must consist of lowercase alphanumeric characters or hyphens, and must start and end with an alphanumeric character", tenant)
	}
	return nil
}
