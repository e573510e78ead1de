package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/service"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/response"
)

// HitCounter counts requests in a fixed window.
type HitCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitConfig limits one group of routes per client IP.
type RateLimitConfig struct {
	Scope  string
	Max    int
	Window time.Duration
}

// RateLimit rejects clients that exceed cfg.Max requests per window with
// RATE_LIMITED. Counter failures let the request through.
func RateLimit(counter HitCounter, metrics *service.MetricsService, logger *zap.Logger, cfg RateLimitConfig) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return func(c *gin.Context) {
		if counter == nil || cfg.Max <= 0 {
			c.Next()
			return
		}
		key := "ace:ratelimit:" + cfg.Scope + ":" + c.ClientIP()
		count, ttl, err := counter.Hit(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", cfg.Scope), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(cfg.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Max) {
			if ttl <= 0 {
				ttl = cfg.Window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			metrics.RecordRateLimited()
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, "Too many requests. Please try again later."))
			c.Abort()
			return
		}
		c.Next()
	}
}
