// Package middleware provides HTTP middleware components for the msgboard server.
package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultExpiry is how long an idle client's bucket is kept.
const DefaultExpiry = 5 * time.Minute

// RateLimiter is a per-client token bucket. Each client may spend its whole
// per-minute allowance at once and then earns tokens back evenly over the
// minute.
type RateLimiter struct {
	perMinute int
	limit     rate.Limit
	expiry    time.Duration
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*client

	done      chan struct{}
	closeOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterOption is a functional option for configuring RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithExpiry sets how long idle clients are remembered.
func WithExpiry(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		if d > 0 {
			r.expiry = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRateLimiter allows perMinute requests per client per minute.
// perMinute must be positive.
func NewRateLimiter(perMinute int, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60),
		expiry:    DefaultExpiry,
		now:       time.Now,
		clients:   make(map[string]*client),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.cleanupLoop()
	return r
}

// Allow spends one token for key. When none is left it returns false and
// how long until the next token is earned.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c := r.clientLocked(key, now)

	res := c.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Remaining returns the whole tokens key can still spend right now.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[key]
	if !ok {
		return r.perMinute
	}
	return int(math.Floor(c.limiter.TokensAt(r.now())))
}

// Limit returns the per-minute allowance.
func (r *RateLimiter) Limit() int {
	return r.perMinute
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *RateLimiter) clientLocked(key string, now time.Time) *client {
	c, ok := r.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(r.limit, r.perMinute)}
		r.clients[key] = c
	}
	c.lastSeen = now
	return c
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(r.expiry)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

// cleanup forgets clients idle for longer than the expiry. A forgotten
// client starts again with a full bucket, which it would have earned back
// by then anyway.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.expiry)
	for key, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, key)
		}
	}
}

// KeyExtractor is a function that extracts a rate limit key from a request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys requests by the peer IP address. Forwarding headers
// are ignored since the board has no trusted proxy configuration.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware returns an HTTP middleware that applies rate limiting.
// Only requests whose method is in methods are counted; an empty list
// limits every request.
func RateLimitMiddleware(limiter *RateLimiter, keyExtractor KeyExtractor, methods ...string) func(http.Handler) http.Handler {
	if keyExtractor == nil {
		keyExtractor = IPKeyExtractor
	}
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	limitHeader := strconv.Itoa(limiter.Limit())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && !limited[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			key := keyExtractor(r)
			w.Header().Set("X-RateLimit-Limit", limitHeader)

			ok, retryIn := limiter.Allow(key)
			if !ok {
				log.Debug().Str("key", key).Str("path", r.URL.Path).Dur("retry_in", retryIn).Msg("rate limit exceeded")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryIn.Seconds()))))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded","code":"RATE_LIMITED"}`))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}
