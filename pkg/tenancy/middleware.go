package tenancy

import (
	"encoding/json"
	"net/http"
)

// Middleware returns HTTP middleware that resolves the tenant using the
// provided Resolver and stores it in the request context. On resolution
// failure it responds with a 400 JSON error.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, err := resolver.Resolve(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "bad_request",
					"message": err.Error(),
				})
				return
			}

			ctx := WithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewMiddleware creates middleware with the appropriate resolver for the
// given configuration.
func NewMiddleware(cfg *Config) func(http.Handler) http.Handler {
	var resolver Resolver
	if cfg != nil && cfg.Mode == ModeMulti {
		resolver = RequestTenantResolver{}
	} else {
		tenant := DefaultTenant
		if cfg != nil && cfg.Tenant != "" {
			tenant = cfg.Tenant
		}
		resolver = SingleTenantResolver{Tenant: tenant}
	}
	return Middleware(resolver)
}
