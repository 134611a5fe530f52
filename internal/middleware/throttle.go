package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"socialhub/internal/ratelimit"
	"socialhub/internal/service"
)

// Throttle limits requests per client IP under the given scope. A limiter
// failure lets the request through.
func Throttle(limiter ratelimit.Limiter, scope string, limit int, window time.Duration, fail ErrorResponder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := scope + ":" + c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Error().Err(err).Str("scope", scope).Str("client_ip", c.ClientIP()).Msg("rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			log.Warn().Str("scope", scope).Str("client_ip", c.ClientIP()).Msg("rate limit exceeded")
			fail(c, service.ErrTooManyRequests)
			return
		}

		c.Next()
	}
}
