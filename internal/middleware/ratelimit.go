package middleware

import (
    "context"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"

    "github.com/iliyamo/theatre-service/internal/config"
)

// takeTokenScript refills the bucket for the whole intervals elapsed since
// the last refill and then takes one token.  Returns {allowed, remaining,
// wait_ms}.
var takeTokenScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local stamp = tonumber(redis.call('HGET', key, 'stamp'))
if not tokens or not stamp then
    tokens = capacity
    stamp = now
end

if interval > 0 and refill > 0 and now > stamp then
    local n = math.floor((now - stamp) / interval)
    if n > 0 then
        tokens = math.min(capacity, tokens + n * refill)
        stamp = stamp + n * interval
    end
end

local allowed = 0
local wait = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.max(0, interval - (now - stamp))
end

redis.call('HSET', key, 'tokens', tokens, 'stamp', stamp)
redis.call('EXPIRE', key, tonumber(ARGV[5]))
return {allowed, tokens, wait}
`)

type bucketState struct {
    allowed   bool
    remaining int64
    wait      time.Duration
}

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string) (bucketState, error) {
    vals, err := takeTokenScript.Run(ctx, rdb, []string{key},
        time.Now().UnixMilli(),
        cfg.Capacity,
        cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(),
        int64(cfg.TTL/time.Second),
    ).Int64Slice()
    if err != nil {
        return bucketState{}, err
    }
    if len(vals) != 3 {
        return bucketState{}, fmt.Errorf("token bucket: unexpected reply %v", vals)
    }
    return bucketState{
        allowed:   vals[0] == 1,
        remaining: vals[1],
        wait:      time.Duration(vals[2]) * time.Millisecond,
    }, nil
}

// NewTokenBucket throttles callers, keyed by RATE_LIMIT_KEY_STRATEGY.
// Every key may burst cfg.Capacity requests and regains cfg.RefillTokens
// per cfg.RefillInterval.  Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger zerolog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    logger = logger.With().Str("component", "ratelimit").Logger()
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            st, err := takeToken(c.Request().Context(), rdb, cfg, key)
            if err != nil {
                logger.Warn().Err(err).Str("key", key).Msg("rate limit skipped")
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if st.allowed {
                return next(c)
            }

            secs := int((st.wait + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            logger.Debug().Str("key", key).Dur("wait", st.wait).Msg("throttled")
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "detail":      fmt.Sprintf("Request was throttled. Expected available in %d seconds.", secs),
                "retry_after": secs,
            })
        }
    }
}

// buildRateKey joins the components named by the strategy, e.g. "user"
// or "ip_route".  Unknown strategies key on ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    parts := map[string]string{
        "ip":    ip,
        "user":  identity(c),
        "route": c.Request().Method + " " + c.Path(),
    }

    names := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
    for _, n := range names {
        if _, ok := parts[n]; !ok {
            names = []string{"ip", "user", "route"}
            break
        }
    }
    key := []string{cfg.Prefix}
    for _, n := range names {
        key = append(key, n, parts[n])
    }
    return strings.Join(key, ":")
}
