package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/metrics"
	"github.com/pgxn-tester/server/internal/ratelimit"
)

// RateLimitQueue throttles queue computations per machine name.
func RateLimitQueue(lim ratelimit.Limiter, bucket ratelimit.Bucket) gin.HandlerFunc {
	return rateLimit(lim, "queue", bucket, func(c *gin.Context) string {
		return c.Param("name")
	})
}

// RateLimitSubmit throttles result submissions per client address. The
// machine name inside the body is unauthenticated at this point, so the
// peer address is the only honest key.
func RateLimitSubmit(lim ratelimit.Limiter, bucket ratelimit.Bucket) gin.HandlerFunc {
	return rateLimit(lim, "submit", bucket, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

func rateLimit(lim ratelimit.Limiter, scope string, bucket ratelimit.Bucket, subject func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), scope, subject(c), bucket)
		if err != nil {
			// Fail open to avoid turning Redis hiccups into outages.
			slog.Default().Warn("rate limit check failed", "scope", scope, "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			c.Next()
			return
		}

		retryAfterSeconds := int(dec.RetryAfter.Seconds())
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		metrics.RateLimitHitsTotal.WithLabelValues(scope).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate limit exceeded",
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
