package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// KeyFunc names the bucket a request counts against and its RPS budget.
// ok=false lets the request through unlimited.
type KeyFunc func(c echo.Context, defaultRPS int) (key string, rps int, ok bool)

// RateLimitConfig config for Redis-based RPS limiter.
type RateLimitConfig struct {
	Redis          *redis.Client
	DefaultRPS     int           // fallback if the key func sets none
	KeyPrefix      string        // e.g. "rl:emp:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
	Key            KeyFunc       // defaults to ByEmployer
}

// ByEmployer limits per authenticated employer (set by APIKeyMiddleware),
// honoring the employer's own rate_limit_rps.
func ByEmployer(c echo.Context, defaultRPS int) (string, int, bool) {
	id, ok := EmployerIDFromCtx(c)
	if !ok || id <= 0 {
		return "", 0, false
	}
	max := defaultRPS
	if m, ok := c.Get(ctxEmployerRPS).(int); ok && m > 0 {
		max = m
	}
	return strconv.FormatInt(id, 10), max, true
}

// ByProviderIP limits unauthenticated webhook callers per provider and source IP.
func ByProviderIP(provider string) KeyFunc {
	return func(c echo.Context, defaultRPS int) (string, int, bool) {
		return provider + ":" + c.RealIP(), defaultRPS, true
	}
}

// RateLimitMiddleware applies a simple fixed-window RPS limit.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:emp:"
	}
	if cfg.Key == nil {
		cfg.Key = ByEmployer
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, max, ok := cfg.Key(c, cfg.DefaultRPS)
			if !ok {
				return next(c)
			}
			if max <= 0 || cfg.Redis == nil {
				// no limit configured or redis missing (dev): allow
				return next(c)
			}

			// fixed-window key: {prefix}{id}:{unix_sec}
			now := time.Now()
			key := cfg.KeyPrefix + id + ":" + strconv.FormatInt(now.Unix(), 10)

			// INCR and set expiry 2*window (safety)
			ctx := c.Request().Context()
			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				return next(c)
			}

			if cnt.Val() > int64(max) {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					if remain > 0 {
						secs := int(remain.Round(time.Second) / time.Second)
						if secs < 1 {
							secs = 1
						}
						c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
					}
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}
