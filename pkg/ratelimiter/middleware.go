package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for per-client rate limiting
func (rl *IPLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !rl.IsAllowed(clientIP) {
			retryAfter := rl.RetryAfter()

			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.perMin))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Rate limit exceeded.",
					"details": "Maximum " + strconv.Itoa(rl.perMin) + " requests per minute allowed.",
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.perMin))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(clientIP)))

		c.Next()
	}
}
