// ratelimit.go - Token-bucket rate limiter middleware by client IP.
//
// Guards POST /upload; designed to complement proxy-side limits.
package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client IP in an in-memory map with
// periodic cleanup.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests allowed per window
	window   time.Duration // time window for rate limiting

	// trustProxy keys visitors on X-Forwarded-For / X-Real-IP instead of
	// the socket address. Only safe behind a proxy that overwrites them.
	trustProxy bool

	stop     chan struct{}
	stopOnce sync.Once
}

// visitor is the bucket for a single IP address.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a rate limiter that allows 'n' requests per 'window'
// per client. The bucket holds n tokens and refills one every window/n, so a
// full burst is available again once the window has passed.
// Example: newRateLimiter(60, time.Minute, false) allows 60 requests per minute per IP.
func newRateLimiter(n int, window time.Duration, trustProxy bool) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &rateLimiter{
		visitors:   make(map[string]*visitor),
		rate:       n,
		window:     window,
		trustProxy: trustProxy,
		stop:       make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// middleware returns an HTTP middleware that enforces rate limits
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, rl.trustProxy)

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", retryAfterSeconds(rl.window))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow takes a token from the bucket of the given IP.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.rate)), rl.rate),
		}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// cleanup periodically removes visitors with no recent requests
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.evictIdle(time.Now().Add(-rl.window * 2)) // Keep visitors for 2x window
	}
}

// evictIdle drops every visitor last seen before cutoff. A bucket idle for
// longer than the window is full again, so dropping it loses no state.
func (rl *rateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// close stops the cleanup goroutine.
func (rl *rateLimiter) close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// getClientIP extracts the client's IP address from the request.
// With trustProxy it checks X-Forwarded-For and X-Real-IP first (for reverse
// proxies). Otherwise those headers are client-controlled and only
// RemoteAddr is used.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	// RemoteAddr is "ip:port"
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
