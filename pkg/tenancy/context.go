package tenancy

import "context"

// ctxKey is an unexported type used as the context key for the tenant.
type ctxKey struct{}

// WithTenant returns a new context with the tenant attached.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenant)
}

// TenantFromContext retrieves the tenant from the context. Returns "" and
// false if no tenant is set.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(ctxKey{}).(string)
	return tenant, ok
}
