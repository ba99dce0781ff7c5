package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	rl.now = func() time.Time { return now }

	steps := []struct {
		name    string
		key     string
		advance time.Duration
		want    bool
	}{
		{"first", "42", 0, true},
		{"second", "42", 0, true},
		{"over limit", "42", 0, false},
		{"other key", "43", 0, true},
		{"still limited", "42", 30 * time.Second, false},
		{"refilled", "42", 31 * time.Second, true},
	}

	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			now = now.Add(s.advance)
			if got := rl.Allow(s.key); got != s.want {
				t.Errorf("Allow(%q) = %v, want %v", s.key, got, s.want)
			}
		})
	}
}

func TestRateLimiterPrune(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, time.Second)
	defer rl.Stop()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(3 * time.Second)
	rl.prune()

	if len(rl.buckets) != 0 {
		t.Errorf("expected idle bucket to be pruned, have %d", len(rl.buckets))
	}
}

func TestZeroRateDisablesLimit(t *testing.T) {
	rl := NewRateLimiter(0, time.Second)
	defer rl.Stop()
	for i := 0; i < 100; i++ {
		if !rl.Allow("x") {
			t.Fatal("zero rate should never limit")
		}
	}
}

func TestMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{http.StatusNoContent, http.StatusTooManyRequests}
	for i, want := range codes {
		req := httptest.NewRequest(http.MethodPost, "/admin/token", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:1", "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
