package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request in the window should be rejected")
	}
	if !rl.allow("b") {
		t.Fatal("clients are limited independently")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Fatal("a new window should reset the count")
	}

	now = now.Add(3 * time.Minute)
	if removed := rl.cleanup(); removed != 2 {
		t.Fatalf("cleanup removed %d, want 2", removed)
	}
	if rl.activeClients() != 0 {
		t.Fatalf("active clients = %d", rl.activeClients())
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Food\x00 "); got != "Food" {
		t.Errorf("got %q", got)
	}
}

func TestIsSuspicious(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/ledger", "Mozilla/5.0", false},
		{"report with date", http.MethodGet, "/api/reports/month?date=2025-04-01", "", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"script in query", http.MethodGet, "/api/transactions?category=<script>", "", true},
		{"scanner agent", http.MethodGet, "/api/ledger", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/api/ledger", "", true},
		{"oversized url", http.MethodGet, "/api/ledger?q=" + strings.Repeat("a", 2100), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "http://saldo.local"+tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			if got := isSuspicious(r); got != tt.want {
				t.Errorf("isSuspicious = %v, want %v", got, tt.want)
			}
		})
	}
}
