package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hrms.org/internal/ids"
)

func TestCanonicalPath(t *testing.T) {
	ulid := ids.New()
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/api/employees/42":                 "/api/employees/:id",
		"/api/leave-requests/7/approve":     "/api/leave-requests/:id/approve",
		"/api/audit-logs/" + ulid:           "/api/audit-logs/:id",
		"/api/audit-logs?page=2":            "/api/audit-logs",
		"/api/super-admin/tenants":          "/api/super-admin/tenants",
		"/api/employees/abc":                "/api/employees/abc",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentPassesStatusThrough(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/employees/1", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("production", "loud", "test"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewLogger("development", "debug", "test"); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
}
