package middleware

import (
	"log"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/user/cineverse/internal/utils"
	"golang.org/x/time/rate"
)

// RateLimiter 按用户（未登录时按 IP 哈希）限流，闲置的限流器自动过期
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
}

// NewRateLimiter perMinute 为每分钟允许的请求数，同时作为突发容量
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		limiters: cache.New(10*time.Minute, 5*time.Minute),
	}
}

// Middleware 放在 OptionalAuth / RequireAuth 之后，才能按用户区分
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + utils.HashIP(c.ClientIP())
		if userID := GetUserID(c); userID != "" {
			key = "user:" + userID
		}

		if !rl.get(key).Allow() {
			retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			log.Printf("[RateLimit] 超出限制: %s", key)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			utils.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	if v, ok := rl.limiters.Get(key); ok {
		// 续期
		rl.limiters.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	// Add 失败说明并发请求已创建
	if err := rl.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		if v, ok := rl.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}
