package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/metrics"
)

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// Concurrency caps simultaneous requests per key.
type Concurrency interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// RateLimitByClientIP limits unauthenticated routes by remote address.
func RateLimitByClientIP(limiter Limiter) gin.HandlerFunc {
	return rateLimit(limiter, func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

// RateLimitByUser limits authenticated routes by identity. It must run
// after Authenticate.
func RateLimitByUser(limiter Limiter) gin.HandlerFunc {
	return rateLimit(limiter, func(c *gin.Context) string {
		id, _ := IdentityFrom(c.Request.Context())
		return "user:" + id.UserID
	})
}

func rateLimit(limiter Limiter, key func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := limiter.Allow(key(c))
		if !ok {
			metrics.Rejected("rate")
			c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(retryAfter.Seconds())))))
			Abort(c, http.StatusTooManyRequests, "RateLimited", "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// LimitConcurrency holds a per-user slot for the rest of the chain. It must
// run after Authenticate.
func LimitConcurrency(guard Concurrency) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := IdentityFrom(c.Request.Context())
		release, err := guard.Acquire(c.Request.Context(), id.UserID)
		if err != nil {
			metrics.Rejected("concurrency")
			Abort(c, http.StatusTooManyRequests, "TooManyConcurrentRequests", "too many concurrent requests")
			return
		}
		defer release()
		c.Next()
	}
}
