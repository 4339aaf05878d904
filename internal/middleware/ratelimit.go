package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig bounds request rates per client IP
type RateLimitConfig struct {
	PerSecond int
	PerMinute int
}

// DefaultRateLimits are generous enough for interactive clients while
// keeping scrapers away from the planning endpoints
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		PerSecond: 10,
		PerMinute: 120,
	}
}

// RateLimit implements fixed-window rate limiting per client IP, counted in
// Redis so limits hold across instances. Redis failures fail open: a broken
// cache must not take the API down.
func RateLimit(rdb *redis.Client, limits RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		ctx := c.Context()
		now := time.Now()

		if limits.PerSecond > 0 {
			key := fmt.Sprintf("rl:%s:second:%d", ip, now.Unix())
			count, err := rdb.Incr(ctx, key).Result()
			if err == nil {
				rdb.Expire(ctx, key, 2*time.Second)
				if count > int64(limits.PerSecond) {
					c.Set("Retry-After", "1")
					return c.Status(429).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"limit_type":  "per_second",
						"limit":       limits.PerSecond,
						"retry_after": 1,
					})
				}
			}
		}

		if limits.PerMinute > 0 {
			key := fmt.Sprintf("rl:%s:minute:%s", ip, now.Format("2006-01-02T15:04"))
			count, err := rdb.Incr(ctx, key).Result()
			if err == nil {
				rdb.Expire(ctx, key, 2*time.Minute)
				if count > int64(limits.PerMinute) {
					retryAfter := 60 - now.Second()
					c.Set("Retry-After", strconv.Itoa(retryAfter))
					return c.Status(429).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"limit_type":  "per_minute",
						"limit":       limits.PerMinute,
						"retry_after": retryAfter,
					})
				}
			}
		}

		return c.Next()
	}
}
