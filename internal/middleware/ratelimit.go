package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

type keyedLimiter interface {
	Allow(key string) bool
}

// RateLimitByIP throttles a route group per client address.
func RateLimitByIP(limiter keyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow(c.ClientIP()) {
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, "too many attempts, try again in a minute"))
			c.Abort()
			return
		}
		c.Next()
	}
}
