package tenancy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSingleTenantResolver(t *testing.T) {
	resolver := SingleTenantResolver{Tenant: "acme"}

	// Fixed tenant regardless of request contents.
	tests := []struct {
		name string
		url  string
	}{
		{"no params", "/api/test"},
		{"with tenant param", "/api/test?tenant=globex"},
		{"with other params", "/api/test?foo=bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			tenant, err := resolver.Resolve(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tenant != "acme" {
				t.Errorf("tenant = %q, want %q", tenant, "acme")
			}
		})
	}

	empty := SingleTenantResolver{}
	r := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	tenant, err := empty.Resolve(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant != DefaultTenant {
		t.Errorf("tenant = %q, want %q", tenant, DefaultTenant)
	}
}

func TestRequestTenantResolver(t *testing.T) {
	resolver := RequestTenantResolver{}

	tests := []struct {
		name       string
		url        string
		header     string
		wantTenant string
		wantError  bool
	}{
		{
			name:       "tenant from query param",
			url:        "/api/test?tenant=acme",
			wantTenant: "acme",
		},
		{
			name:       "tenant from header",
			url:        "/api/test",
			header:     "globex",
			wantTenant: "globex",
		},
		{
			name:       "query param takes precedence over header",
			url:        "/api/test?tenant=from-query",
			header:     "from-header",
			wantTenant: "from-query",
		},
		{
			name:      "missing tenant",
			url:       "/api/test",
			wantError: true,
		},
		{
			name:      "invalid tenant - uppercase",
			url:       "/api/test?tenant=Acme",
			wantError: true,
		},
		{
			name:      "invalid tenant - special chars",
			url:       "/api/test?tenant=ac_me!",
			wantError: true,
		},
		{
			name:      "invalid tenant - starts with hyphen",
			url:       "/api/test?tenant=-acme",
			wantError: true,
		},
		{
			name:      "invalid tenant - too long",
			url:       "/api/test?tenant=" + strings.Repeat("a", maxTenantLen+1),
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set(TenantHeader, tt.header)
			}
			tenant, err := resolver.Resolve(r)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tenant != tt.wantTenant {
				t.Errorf("tenant = %q, want %q", tenant, tt.wantTenant)
			}
		})
	}
}
