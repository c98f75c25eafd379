package middleware

import (
    "fmt"
    "log/slog"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/sdoering/warp/internal/config"
)

// RateLimit guards a route with a token bucket.  With a Redis client the
// bucket is shared by every instance; without one each process keeps its
// own buckets in memory.  A disabled config yields a pass-through.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = slog.Default()
    }
    if rdb == nil {
        return NewLocalLimiter(cfg).Middleware()
    }
    return NewTokenBucket(cfg, rdb, log)
}

// bucketScript refills by whole intervals, takes one token and returns
// {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket is the Redis-backed limiter.  Redis errors fail open so
// an outage of the cache does not lock everybody out of the login page.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
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

            vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
            if err != nil {
                log.Warn("ratelimit: redis error, allowing request", "key", key, "error", err)
                return next(c)
            }
            arr, ok := vals.([]interface{})
            if !ok || len(arr) != 3 {
                log.Warn("ratelimit: unexpected script result", "key", key, "result", fmt.Sprintf("%#v", vals))
                return next(c)
            }
            allowed := asInt64(arr[0]) == 1
            remaining := asInt64(arr[1])
            retry := time.Duration(asInt64(arr[2])) * time.Millisecond

            if cfg.Debug {
                log.Debug("ratelimit", "key", key, "allowed", allowed, "remaining", remaining)
            }
            return limitResponse(c, next, cfg.Capacity, remaining, allowed, retry)
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

// limitResponse sets the rate headers and either continues or answers 429.
func limitResponse(c echo.Context, next echo.HandlerFunc, capacity int, remaining int64, allowed bool, retry time.Duration) error {
    h := c.Response().Header()
    h.Set("X-RateLimit-Limit", strconv.Itoa(capacity))
    h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
    if allowed {
        return next(c)
    }
    secs := int(math.Ceil(retry.Seconds()))
    if secs < 1 {
        secs = 1
    }
    h.Set("Retry-After", strconv.Itoa(secs))
    return c.JSON(http.StatusTooManyRequests, echo.Map{
        "error":       "too many requests",
        "retry_after": secs,
    })
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "route":
        parts = append(parts, "route", route)
    case "user":
        parts = append(parts, "user", userID(c))
    default: // ip_route
        parts = append(parts, "ip", ip, "route", route)
    }
    return strings.Join(parts, ":")
}

// LocalLimiter keeps one x/time/rate limiter per key in memory.  Idle
// keys are dropped after cfg.TTL.
type LocalLimiter struct {
    cfg   config.RateLimitConfig
    limit rate.Limit

    mu        sync.Mutex
    buckets   map[string]*localBucket
    lastSweep time.Time
}

type localBucket struct {
    lim  *rate.Limiter
    seen time.Time
}

func NewLocalLimiter(cfg config.RateLimitConfig) *LocalLimiter {
    return &LocalLimiter{
        cfg:       cfg,
        limit:     rate.Every(cfg.RefillInterval / time.Duration(cfg.RefillTokens)),
        buckets:   make(map[string]*localBucket),
        lastSweep: time.Now(),
    }
}

func (l *LocalLimiter) reserve(key string, now time.Time) (allowed bool, remaining int64, retry time.Duration) {
    l.mu.Lock()
    defer l.mu.Unlock()

    if now.Sub(l.lastSweep) > l.cfg.TTL {
        for k, b := range l.buckets {
            if now.Sub(b.seen) > l.cfg.TTL {
                delete(l.buckets, k)
            }
        }
        l.lastSweep = now
    }

    b, ok := l.buckets[key]
    if !ok {
        b = &localBucket{lim: rate.NewLimiter(l.limit, l.cfg.Capacity)}
        l.buckets[key] = b
    }
    b.seen = now

    if b.lim.AllowN(now, 1) {
        return true, int64(b.lim.TokensAt(now)), 0
    }
    r := b.lim.ReserveN(now, 1)
    retry = r.DelayFrom(now)
    r.CancelAt(now)
    return false, 0, retry
}

// Middleware applies the limiter.
func (l *LocalLimiter) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            allowed, remaining, retry := l.reserve(buildRateKey(l.cfg, c), time.Now())
            return limitResponse(c, next, l.cfg.Capacity, remaining, allowed, retry)
        }
    }
}
