package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter admits at most limit requests per client address in each
// fixed window. Idle clients are swept lazily, at most once per window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientWindow
	swept   time.Time
	now     func() time.Time
}

type clientWindow struct {
	start time.Time
	used  int
}

// NewRateLimiter returns a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// Allow records a request from client and reports whether it is admitted.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.swept) > rl.window {
		for key, cw := range rl.clients {
			if now.Sub(cw.start) > rl.window {
				delete(rl.clients, key)
			}
		}
		rl.swept = now
	}

	cw, ok := rl.clients[client]
	if !ok || now.Sub(cw.start) > rl.window {
		rl.clients[client] = &clientWindow{start: now, used: 1}
		return true
	}
	if cw.used >= rl.limit {
		return false
	}
	cw.used++
	return true
}

// Handler rejects requests over the limit with 429 and a Retry-After of
// one window. Run it after TrustedRealIP so proxied clients are keyed by
// their own address.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(rl.window.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := r.RemoteAddr
		if ip := ExtractIP(r.RemoteAddr); ip != nil {
			client = ip.String()
		}
		if !rl.Allow(client) {
			w.Header().Set("Retry-After", retryAfter)
			denied(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE001")
			return
		}
		next.ServeHTTP(w, r)
	})
}
