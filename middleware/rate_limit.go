package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// UnknownClient is the bucket shared by requests with no resolvable address
const UnknownClient = "unknown"

// RateLimiter is a sliding-log limiter: per client it keeps the timestamps of accepted
// requests inside the trailing window and rejects once quota is reached.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	quota  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
// quota: accepted requests per client within window
func NewRateLimiter(quota int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		quota:  quota,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces time.Now, for tests
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Allow records the request and reports whether it is within quota.
// Rejected requests are not recorded.
func (rl *RateLimiter) Allow(clientID string) bool {
	if clientID == "" {
		clientID = UnknownClient
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.prune(clientID, now)
	if len(recent) >= rl.quota {
		return false
	}
	rl.hits[clientID] = append(recent, now)
	return true
}

// RetryAfter returns how long until the client's oldest in-window hit expires
func (rl *RateLimiter) RetryAfter(clientID string) time.Duration {
	if clientID == "" {
		clientID = UnknownClient
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.prune(clientID, now)
	if len(recent) < rl.quota || len(recent) == 0 {
		return 0
	}
	return recent[0].Add(rl.window).Sub(now)
}

// prune drops timestamps older than the window. Caller holds mu.
func (rl *RateLimiter) prune(clientID string, now time.Time) []time.Time {
	hits := rl.hits[clientID]
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	recent := hits[i:]
	if len(recent) == 0 {
		delete(rl.hits, clientID)
		return nil
	}
	rl.hits[clientID] = recent
	return recent
}

// Cleanup removes clients whose hits have all left the window
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for clientID := range rl.hits {
		rl.prune(clientID, now)
	}
}

// StartCleanup periodically cleans up idle clients until stop is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hits)
}

// RateLimitMiddleware rejects requests over quota with 429
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			retryAfter := int(math.Ceil(rl.RetryAfter(ip).Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      formatRateLimitError(retryAfter),
				"retryAfter": retryAfter,
			})
			return
		}
		c.Next()
	}
}

// formatRateLimitError formats the rate limit error message
func formatRateLimitError(seconds int) string {
	return fmt.Sprintf("Too many requests. Please try again in %d second(s).", seconds)
}
