package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(30)
	defer limiter.Close()

	if limiter.Limit() != 30 {
		t.Errorf("Limit() = %d, want 30", limiter.Limit())
	}
	if limiter.expiry != DefaultExpiry {
		t.Errorf("expiry = %v, want %v", limiter.expiry, DefaultExpiry)
	}

	custom := NewRateLimiter(1, WithExpiry(time.Second), WithExpiry(-time.Second))
	defer custom.Close()
	if custom.expiry != time.Second {
		t.Errorf("expiry = %v, want 1s (negative ignored)", custom.expiry)
	}
}

func TestAllow_PerKey(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(3, WithClock(clock.Now))
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if ok, _ := limiter.Allow("a"); !ok {
			t.Fatalf("request %d for a should be allowed", i+1)
		}
	}
	if ok, _ := limiter.Allow("a"); ok {
		t.Error("fourth request for a should be limited")
	}
	if ok, _ := limiter.Allow("b"); !ok {
		t.Error("b has its own bucket")
	}

	tests := []struct {
		key  string
		want int
	}{
		{"a", 0},
		{"b", 2},
		{"unknown", 3},
	}
	for _, tt := range tests {
		if got := limiter.Remaining(tt.key); got != tt.want {
			t.Errorf("Remaining(%s) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestAllow_Refill(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(6, WithClock(clock.Now)) // one token every 10s
	defer limiter.Close()

	for i := 0; i < 6; i++ {
		if ok, _ := limiter.Allow("k"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, retryIn := limiter.Allow("k")
	if ok {
		t.Fatal("seventh request should be limited")
	}
	if retryIn <= 0 || retryIn > 10*time.Second {
		t.Errorf("retryIn = %v, want within (0, 10s]", retryIn)
	}

	// A denied request does not use up the token being earned.
	clock.Advance(11 * time.Second)
	if ok, _ := limiter.Allow("k"); !ok {
		t.Error("request after one refill interval should be allowed")
	}
	if ok, _ := limiter.Allow("k"); ok {
		t.Error("only one token should have been earned")
	}

	clock.Advance(time.Minute)
	if got := limiter.Remaining("k"); got != 6 {
		t.Errorf("Remaining() after a minute = %d, want 6 (capped at the allowance)", got)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(50, WithClock(clock.Now))
	defer limiter.Close()

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestCleanup(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(1, WithClock(clock.Now), WithExpiry(time.Minute))
	defer limiter.Close()

	limiter.Allow("old")
	clock.Advance(2 * time.Minute)
	limiter.Allow("fresh")
	limiter.cleanup()

	limiter.mu.Lock()
	_, hasOld := limiter.clients["old"]
	_, hasFresh := limiter.clients["fresh"]
	limiter.mu.Unlock()

	if hasOld {
		t.Error("idle client should be forgotten")
	}
	if !hasFresh {
		t.Error("recent client should be kept")
	}
}

func TestClose_Idempotent(t *testing.T) {
	limiter := NewRateLimiter(1)
	limiter.Close()
	limiter.Close()
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"ipv4", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"ipv6", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"no port", "192.0.2.7", nil, "192.0.2.7"},
		{"forwarding headers ignored", "192.0.2.1:1234", map[string]string{
			"X-Forwarded-For": "203.0.113.9",
			"X-Real-IP":       "203.0.113.10",
		}, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := IPKeyExtractor(r); got != tt.want {
				t.Errorf("IPKeyExtractor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(2, WithClock(clock.Now)) // one token every 30s
	defer limiter.Close()

	handler := RateLimitMiddleware(limiter, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	do := func(method string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, "/api/messages", nil)
		r.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	for i, wantRemaining := range []string{"1", "0"} {
		rec := do(http.MethodPost)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %d status = %d, want 200", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("POST %d X-RateLimit-Remaining = %q, want %q", i, got, wantRemaining)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("X-RateLimit-Limit = %q, want 2", got)
		}
	}

	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third POST status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	if body := rec.Body.String(); body != `{"error":"rate limit exceeded","code":"RATE_LIMITED"}` {
		t.Errorf("body = %s", body)
	}

	if rec := do(http.MethodGet); rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200 (not limited)", rec.Code)
	}

	clock.Advance(31 * time.Second)
	if rec := do(http.MethodPost); rec.Code != http.StatusOK {
		t.Errorf("POST after refill status = %d, want 200", rec.Code)
	}
}
