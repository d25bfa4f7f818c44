package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
)

// RateLimiter limits requests per client IP in fixed windows.
type RateLimiter struct {
	requests map[string]*clientLimit
	mu       sync.Mutex
	limit    int
	window   time.Duration
	stop     chan struct{}
	now      func() time.Time
}

type clientLimit struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter allows requestsPerWindow requests per client in each window.
// Call Stop to end the cleanup goroutine.
func NewRateLimiter(requestsPerWindow int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*clientLimit),
		limit:    requestsPerWindow,
		window:   window,
		stop:     make(chan struct{}),
		now:      time.Now,
	}

	go rl.cleanup()

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, limit := range rl.requests {
				if now.After(limit.resetTime) {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow counts one request of client and reports whether it is within the
// limit, together with the remaining budget and the window reset time.
func (rl *RateLimiter) allow(client string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.requests[client]
	if !exists || now.After(limit.resetTime) {
		limit = &clientLimit{resetTime: now.Add(rl.window)}
		rl.requests[client] = limit
	}

	if limit.count >= rl.limit {
		return false, 0, limit.resetTime
	}
	limit.count++
	return true, rl.limit - limit.count, limit.resetTime
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, remaining, reset := rl.allow(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			retryAfter := int(reset.Sub(rl.now()).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abort(c, http.StatusTooManyRequests, manage.CodeGeneric, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
