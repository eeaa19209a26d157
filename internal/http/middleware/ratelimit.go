// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a fixed-window rate limiter with per-client buckets
// behind a pluggable counter store. Each named policy (general,
// auth-sensitive, heavy API) owns an independent window/ceiling pair; a
// client key maps to exactly one active window per policy.
//
// Features:
//   - Keyed counter abstraction (Store) so the in-memory, single-process
//     implementation can be swapped for a shared store in multi-instance
//     deployments without touching call sites
//   - Standard X-RateLimit-Limit / -Remaining / -Reset headers on every
//     response, exceeded or not
//   - Health and readiness paths exempt from all policies
//   - Best-effort cleanup of idle buckets to bound memory
//
// Notes:
//   - The limiter is intended for edge-level abuse control and cost
//     protection; it is not an authorization mechanism.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// fallbackClientKey is used when neither a forwarded-address header nor a
// socket address is available. All such requests share one bucket; coarser
// limiting beats failing the request.
const fallbackClientKey = "unknown"

// Policy names one fixed-window admission rule: at most Limit requests per
// client key within each Window.
type Policy struct {
	Name   string
	Window time.Duration
	Limit  int
}

// Decision is the outcome of one admission check, carrying everything needed
// to emit the standard rate-limit response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Store is the keyed-counter abstraction behind the limiter. Take records one
// request for (key, policy) at time now and decides admission atomically.
// Implementations must be safe for concurrent use and must not lose updates
// under concurrent increment-and-check for the same key.
type Store interface {
	Take(key string, p Policy, now time.Time) Decision
}

// bucket holds the counter for one (policy, client key) pair. It remembers
// its own policy window so eviction never judges it by another policy's
// clock: the store is shared across policies with very different windows.
type bucket struct {
	count  int
	start  time.Time
	window time.Duration
}

// MemoryStore is the process-local Store: a mutex-guarded map of buckets with
// opportunistic garbage collection of expired windows. For horizontally
// scaled deployments, substitute a shared-store implementation.
type MemoryStore struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	cleanupN uint64
}

// NewMemoryStore constructs an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

// Take implements Store with fixed-window counting: when the current time has
// passed the window start plus the policy window, the bucket resets before
// the ceiling is evaluated. Expired buckets across all keys are evicted after
// ~5000 lookups to keep memory bounded.
func (s *MemoryStore) Take(key string, p Policy, now time.Time) Decision {
	mapKey := p.Name + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupN++
	if s.cleanupN >= 5000 {
		for k, b := range s.buckets {
			if now.Sub(b.start) >= 2*b.window {
				delete(s.buckets, k)
			}
		}
		s.cleanupN = 0
	}

	b, ok := s.buckets[mapKey]
	if !ok || now.Sub(b.start) >= p.Window {
		b = &bucket{start: now, window: p.Window}
		s.buckets[mapKey] = b
	}

	d := Decision{Limit: p.Limit, Reset: b.start.Add(p.Window)}
	if b.count >= p.Limit {
		return d
	}
	b.count++
	d.Allowed = true
	d.Remaining = p.Limit - b.count
	return d
}

// ClientKey extracts the rate-limit identity for a request: the first entry
// of X-Forwarded-For when present, else the socket-derived client IP, else a
// fixed sentinel. Never fails the request.
func ClientKey(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			if k := strings.TrimSpace(first); k != "" {
				return k
			}
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return fallbackClientKey
}

// RateLimiter enforces one Policy against a Store.
//
// This type is safe for concurrent use.
type RateLimiter struct {
	policy Policy
	store  Store
	exempt map[string]struct{}

	nowFn func() time.Time // test seam
}

// NewRateLimiter binds policy to store. Operational probe paths (/health,
// /ready) are always exempt.
func NewRateLimiter(policy Policy, store Store) *RateLimiter {
	if policy.Limit < 1 {
		policy.Limit = 1
	}
	return &RateLimiter{
		policy: policy,
		store:  store,
		exempt: map[string]struct{}{"/health": {}, "/ready": {}},
		nowFn:  time.Now,
	}
}

// Handler returns a Gin middleware enforcing the limiter's policy.
//
// Behavior:
//   - Exempt paths pass through untouched.
//   - Every other response carries X-RateLimit-Limit, X-RateLimit-Remaining,
//     and X-RateLimit-Reset (unix seconds), admitted or not.
//   - Over the ceiling, the request is rejected with 429, a Retry-After
//     header, and a body naming the retry hint:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "error":      "Too many requests, please try again later.",
//	  "statusCode": 429,
//	  "requestId":  "<uuid>",
//	  "code":       "too_many_requests",
//	  "retryAfter": "15m0s"
//	}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, skip := rl.exempt[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		d := rl.store.Take(ClientKey(c), rl.policy, rl.nowFn())

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if d.Allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(rl.policy.Window/time.Second)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many requests, please try again later.",
			"statusCode": http.StatusTooManyRequests,
			"requestId":  c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"retryAfter": rl.policy.Window.String(),
		})
	}
}
