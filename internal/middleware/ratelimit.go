package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticket-booking/internal/config"
)

// NewTokenBucket returns a Redis-backed token bucket limiter.  The bucket
// state lives in a Redis hash per key so limits hold across instances.
// When the limiter is disabled or Redis is unavailable the middleware
// passes requests through untouched; throttling is protection, not a
// correctness requirement.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	limiterScript := redis.NewScript(`
		local bucket = KEYS[1]
		local now = tonumber(ARGV[1])
		local cap = tonumber(ARGV[2])
		local refill = tonumber(ARGV[3])
		local period = tonumber(ARGV[4])
		local ttl = tonumber(ARGV[5])

		local state = redis.call('HMGET', bucket, 'tokens', 'stamp')
		local tokens = tonumber(state[1])
		local stamp = tonumber(state[2])
		if not tokens or not stamp then
			tokens = cap
			stamp = now
		end

		local elapsed = now - stamp
		if elapsed < 0 then elapsed = 0 end
		if period > 0 and refill > 0 then
			local ticks = math.floor(elapsed / period)
			if ticks > 0 then
				tokens = math.min(cap, tokens + ticks * refill)
				stamp = stamp + ticks * period
			end
		end

		local ok = 0
		local wait = 0
		if tokens > 0 then
			ok = 1
			tokens = tokens - 1
		else
			wait = period - (now - stamp)
			if wait < 0 then wait = 0 end
		end

		redis.call('HMSET', bucket, 'tokens', tokens, 'stamp', stamp)
		redis.call('EXPIRE', bucket, ttl)
		return { ok, tokens, wait }
	`)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)

			args := []interface{}{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			ctx := c.Request().Context()
			vals, err := limiterScript.Run(ctx, rdb, []string{key}, args...).Result()
			if err != nil {
				// Fail open: a limiter outage must not take bookings down.
				return next(c)
			}

			arr, ok := vals.([]interface{})
			if !ok || len(arr) != 3 {
				return next(c)
			}
			allowed := asInt64(arr[0]) == 1
			remaining := asInt64(arr[1])
			retryMs := asInt64(arr[2])

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// buildRateKey derives the bucket key from the configured strategy.  The
// default combines client IP, user and route so one hot customer cannot
// starve the rest.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := currentUserID(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(uint64); ok && v > 0 {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
