package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// --- truncate tests ---

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got := truncate(tt.s, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
			}
		})
	}
}

// --- scope summary tests ---

func TestScopeSummary(t *testing.T) {
	if got := scopeSummary(map[string]any{"series": "assignment"}); got != "assignment" {
		t.Errorf("scopeSummary = %q, want %q", got, "assignment")
	}
	got := scopeSummary(map[string]any{"series": "assignment", "region": "emea"})
	if !strings.Contains(got, "region") {
		t.Errorf("multi-dimension scope should render as JSON, got %q", got)
	}
	if got := payloadSummary(nil); got != "-" {
		t.Errorf("payloadSummary(nil) = %q, want %q", got, "-")
	}
}

// --- HTTP client tests ---

func TestClientSendsTenantHeader(t *testing.T) {
	var receivedHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get("X-Tenant")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, tenant: "acme", http: srv.Client()}

	var result map[string]any
	if err := client.getJSON("/healthz", &result); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if receivedHeader != "acme" {
		t.Errorf("X-Tenant header = %q, want %q", receivedHeader, "acme")
	}
}

func TestClientNoTenantHeaderWhenEmpty(t *testing.T) {
	var hasHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasHeader = r.Header["X-Tenant"]
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var result map[string]any
	if err := client.getJSON("/healthz", &result); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if hasHeader {
		t.Error("X-Tenant header should not be set")
	}
}

func TestClientTenantOnPost(t *testing.T) {
	var receivedHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get("X-Tenant")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "rec-1"})
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, tenant: "acme", http: srv.Client()}

	var result map[string]any
	body := map[string]string{"subjectId": "emp-1"}
	if err := client.postJSON("/api/v1/records", body, &result); err != nil {
		t.Fatalf("postJSON failed: %v", err)
	}
	if receivedHeader != "acme" {
		t.Errorf("X-Tenant header = %q, want %q", receivedHeader, "acme")
	}
}

func TestClientAcceptsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(runView{ID: "run-1", State: "queued"})
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var run runView
	if err := client.postJSON("/api/v1/sync", map[string]string{"source": "payroll"}, &run); err != nil {
		t.Fatalf("postJSON failed: %v", err)
	}
	if run.State != "queued" {
		t.Errorf("run state = %q, want %q", run.State, "queued")
	}
}

func TestClientErrorHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "conflict", "message": "interval overlaps closed history"})
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var rec recordView
	err := client.postJSON("/api/v1/records", map[string]string{}, &rec)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "409") {
		t.Errorf("error should contain status code, got: %v", err)
	}
}

func TestRecordsListHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/subjects/emp-1/records" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("series"); got != "assignment" {
			t.Errorf("series param = %q, want %q", got, "assignment")
		}
		resp := map[string]any{
			"records": []recordView{
				{ID: "rec-1", SubjectID: "emp-1", EffectiveStart: "2024-01-01T00:00:00Z", EffectiveEnd: "2024-03-01T00:00:00Z"},
				{ID: "rec-2", SubjectID: "emp-1", EffectiveStart: "2024-03-01T00:00:00Z"},
			},
			"nextPageToken": "",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := &engineClient{baseURL: srv.URL, http: srv.Client()}

	var resp struct {
		Records []recordView `json:"records"`
	}
	if err := client.getJSON("/api/v1/subjects/emp-1/records?series=assignment", &resp); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp.Records))
	}
	if resp.Records[1].EffectiveEnd != "" {
		t.Errorf("second record should be open, got end %q", resp.Records[1].EffectiveEnd)
	}
}

// --- resolvedTenant tests ---

func TestResolvedTenant_Flag(t *testing.T) {
	oldTenant := tenant
	defer func() { tenant = oldTenant }()

	tenant = "from-flag"
	t.Setenv("ENGINE_TENANT", "from-env")

	if got := resolvedTenant(); got != "from-flag" {
		t.Errorf("resolvedTenant() = %q, want %q (flag should have priority)", got, "from-flag")
	}
}

func TestResolvedTenant_EnvVar(t *testing.T) {
	oldTenant := tenant
	defer func() { tenant = oldTenant }()

	tenant = ""
	t.Setenv("ENGINE_TENANT", "from-env")

	if got := resolvedTenant(); got != "from-env" {
		t.Errorf("resolvedTenant() = %q, want %q", got, "from-env")
	}
}

func TestResolvedTenant_Default(t *testing.T) {
	oldTenant := tenant
	defer func() { tenant = oldTenant }()

	tenant = ""
	t.Setenv("ENGINE_TENANT", "")

	if got := resolvedTenant(); got != "" {
		t.Errorf("resolvedTenant() = %q, want empty", got)
	}
}
