package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blockward/backend/pkg/metrics"
	"blockward/backend/pkg/redis"
	"blockward/backend/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// 已认证请求按用户计数，否则按客户端 IP 计数。
// rdb 为 nil 或 Redis 出错时降级放行。
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString("user_id")
		if subject == "" {
			subject = c.ClientIP()
		}
		route := c.FullPath()

		key := fmt.Sprintf("rate_limit:%s:%s", route, subject)
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			metrics.RateLimited.WithLabelValues(route).Inc()
			response.TooManyRequests(c, window)
			c.Abort()
			return
		}

		c.Next()
	}
}
