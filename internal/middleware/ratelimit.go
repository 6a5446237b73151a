package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a per-route admission check consulted before any handler work
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// MemoryLimiter implements a sliding-window rate limiter in process memory.
// Used when no Redis backend is configured.
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	maxReqs  int
}

// NewMemoryLimiter creates a new in-memory rate limiter
func NewMemoryLimiter(window time.Duration, maxReqs int) *MemoryLimiter {
	rl := &MemoryLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
	}

	// Cleanup goroutine to remove old entries
	go rl.cleanup()

	return rl
}

// Allow checks if a request is allowed for the given key
func (rl *MemoryLimiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	reqs := rl.requests[key]
	filtered := make([]time.Time, 0, len(reqs))
	for _, t := range reqs {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}

	if len(filtered) >= rl.maxReqs {
		rl.requests[key] = filtered
		return false
	}

	rl.requests[key] = append(filtered, now)
	return true
}

// cleanup periodically removes old entries to prevent memory leaks
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.window * 2) // Keep entries for 2x window

		for key, reqs := range rl.requests {
			filtered := make([]time.Time, 0)
			for _, t := range reqs {
				if t.After(cutoff) {
					filtered = append(filtered, t)
				}
			}

			if len(filtered) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = filtered
			}
		}
		rl.mu.Unlock()
	}
}

// RedisLimiter implements a sliding-window rate limiter over Redis sorted
// sets, shared across instances.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	window  time.Duration
	maxReqs int
}

// NewRedisLimiter creates a Redis-backed rate limiter
func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration, maxReqs int) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		prefix:  prefix,
		window:  window,
		maxReqs: maxReqs,
	}
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current = redis.call('ZCARD', key)
	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('EXPIRE', key, ttl)
		redis.call('EXPIRE', key .. ':counter', ttl)
		return 1
	end
	return 0
`)

// Allow checks if a request is allowed for the given key. Fails open on
// Redis errors so an outage does not take the API down with it.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := time.Now()
	windowStart := now.Add(-rl.window)
	ttl := int(rl.window/time.Second) + 1

	allowed, err := slidingWindowScript.Run(ctx, rl.client,
		[]string{rl.prefix + key},
		now.UnixMilli(), windowStart.UnixMilli(), rl.maxReqs, ttl,
	).Int64()
	if err != nil {
		log.Printf("rate limiter redis error: %v", err)
		return true
	}
	return allowed == 1
}

// RateLimitMiddleware rejects with 429 before the handler runs when the
// limiter denies the key produced by keyFunc.
func RateLimitMiddleware(limiter Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if !limiter.Allow(r.Context(), key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				response := map[string]string{"error": "rate limit exceeded"}
				_ = json.NewEncoder(w).Encode(response)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPKey extracts the client IP from the request for rate limiting
func IPKey(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take first IP if multiple
		ips := strings.Split(forwarded, ",")
		return "ip:" + strings.TrimSpace(ips[0])
	}

	// RemoteAddr carries the ephemeral port; without stripping it every
	// connection would get its own bucket.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
