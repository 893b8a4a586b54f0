package security

import (
	"net/http/httptest"
	"testing"

	"github.com/brianly1003/msgboard/internal/testutil"
)

func TestOriginChecker_Allowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"localhost by default", nil, "http://localhost:3000", true},
		{"loopback ip by default", nil, "http://127.0.0.1:5173", true},
		{"ipv6 loopback by default", nil, "http://[::1]:8080", true},
		{"dev subdomain by default", nil, "http://app.localhost", true},
		{"foreign rejected by default", nil, "https://evil.example", false},
		{"localhost lookalike rejected", nil, "https://localhost.evil.example", false},
		{"garbage rejected", nil, "not an origin", false},
		{"any", []string{"*"}, "https://any.example", true},
		{"exact", []string{"https://board.example"}, "https://board.example", true},
		{"exact case-insensitive", []string{"https://Board.Example"}, "https://board.example", true},
		{"scheme matters", []string{"https://board.example"}, "http://board.example", false},
		{"localhost not implied once configured", []string{"https://board.example"}, "http://localhost:3000", false},
		{"subdomain wildcard", []string{"*.example.com"}, "https://app.example.com", true},
		{"subdomain wildcard apex", []string{"*.example.com"}, "https://example.com", true},
		{"subdomain wildcard suffix trick", []string{"*.example.com"}, "https://badexample.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc := NewOriginChecker(tt.allowed)
			if got := oc.Allowed(tt.origin); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestOriginChecker_CheckOrigin(t *testing.T) {
	oc := NewOriginChecker(nil)

	r := httptest.NewRequest("GET", "/api/messages", nil)
	testutil.AssertTrue(t, oc.CheckOrigin(r), "request without Origin")

	r.Header.Set("Origin", "https://evil.example")
	testutil.AssertFalse(t, oc.CheckOrigin(r), "foreign Origin")
}

func TestIsWildcardOrigin(t *testing.T) {
	tests := map[string]bool{
		"*":                     true,
		"*.example.com":         true,
		"*.":                    false,
		"https://board.example": false,
		"":                      false,
	}
	for pattern, want := range tests {
		if got := IsWildcardOrigin(pattern); got != want {
			t.Errorf("IsWildcardOrigin(%q) = %v, want %v", pattern, got, want)
		}
	}
}
