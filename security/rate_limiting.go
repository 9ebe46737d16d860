package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ticket-marketplace/internal/auth"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

// NewRateLimiter allows perMinute requests per client and window.
func NewRateLimiter(redisClient redis.Cmdable, perMinute int) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  int64(perMinute),
		window: time.Minute,
	}
}

// RateLimit counts requests per caller email, or per client IP when no
// caller is known. The email is only set by auth.RequireAuth, so on
// authenticated routes RateLimit must be bound after it. Redis failures let
// the request through.
func (r *RateLimiter) RateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		id := "ip:" + clientIP(e)
		if email := auth.CallerEmail(e); email != "" {
			id = "user:" + email
		}

		if r.exceeded(e, "ratelimit:"+id, r.limit) {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}
		return e.Next()
	}
}

// AntiBot refuses crawler user agents and bursts above 30 requests per
// minute from one IP. Mounted on booking and checkout routes.
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "Access denied",
			})
		}

		if r.exceeded(e, fmt.Sprintf("antibot:%s", clientIP(e)), 30) {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests",
			})
		}
		return e.Next()
	}
}

func (r *RateLimiter) exceeded(e *core.RequestEvent, key string, limit int64) bool {
	ctx := e.Request.Context()

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limiter unavailable", "key", key, "error", err)
		return false
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	return count > limit
}

func clientIP(e *core.RequestEvent) string {
	if e.App != nil {
		return e.RealIP()
	}
	host, _, err := net.SplitHostPort(e.Request.RemoteAddr)
	if err != nil {
		return e.Request.RemoteAddr
	}
	return host
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
