package security

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a fixed-window token bucket keyed by an arbitrary string
// (a chat id for updates, a client IP for the admin token endpoint).
type RateLimiter struct {
	buckets map[string]*bucket
	mu      sync.Mutex
	rate    int           // requests per window
	window  time.Duration // time window
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per window per key
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanup(time.Hour)
	return rl
}

// Allow consumes one token for key and reports whether the request may proceed
func (rl *RateLimiter) Allow(key string) bool {
	if rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.lastRefill) >= rl.window {
		b = &bucket{tokens: rl.rate, lastRefill: now}
		rl.buckets[key] = b
	}

	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// Stop ends the background cleanup
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

// prune drops buckets idle for more than two windows
func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.window*2 {
			delete(rl.buckets, key)
		}
	}
}

// Middleware rejects requests over the per-IP limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r)) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	// first hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
