package middleware

import (
	"fmt"
	"net/http"
	"time"

	"feedsync/internal/infra/cache"
	"feedsync/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware allows limit calls of action per user per window. With
// no Redis, or when Redis fails, requests pass.
func RateLimitMiddleware(rdb *cache.RedisCache, action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		userID, err := utils.GetUserID(c)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, err.Error())
			return
		}
		key := fmt.Sprintf("rate:limit:%d:%s", userID, action)

		allowed, err := rdb.AllowRequest(c.Request.Context(), key, limit, window)
		if err != nil {
			zap.L().Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			utils.Error(c, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}

		c.Next()
	}
}
