package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/theatre-service/internal/config"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h"`
    Body   []byte      `json:"b"`
}

// bodyRecorder forwards the response and keeps a copy of at most limit
// bytes (no limit when <= 0).
type bodyRecorder struct {
    http.ResponseWriter
    status    int
    body      bytes.Buffer
    limit     int64
    truncated bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if !r.truncated {
        if r.limit > 0 && int64(r.body.Len()+len(b)) > r.limit {
            r.truncated = true
            r.body.Reset()
        } else {
            r.body.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// cacheKey names the entry for the current request under generation gen.
// The caller is always part of the key since reservation listings are per
// user, and the concrete path is added so /plays/1/ and /plays/2/ differ.
// The host is included because responses embed absolute image URLs.
func cacheKey(cfg config.CacheConfig, c echo.Context, gen int64) string {
    r := c.Request()
    fields := []string{identity(c), r.Host, r.URL.Path, c.Path()}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
    case "method_route":
        fields = append(fields, r.Method)
    case "method_route_query":
        fields = append(fields, r.Method, r.URL.RawQuery)
    default: // route_query
        fields = append(fields, r.URL.RawQuery)
    }
    sum := sha1.Sum([]byte(strings.Join(fields, "\x00")))
    return cfg.Prefix + ":" + strconv.FormatInt(gen, 10) + ":" + hex.EncodeToString(sum[:])
}

// NewRedisCache serves cached 200 responses for cfg.Methods.  Any other
// method answering below 400 bumps the generation counter, which retires
// every entry at once.  It must run after JWTAuth.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    genKey := cfg.Prefix + ":gen"

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                err := next(c)
                if err == nil && c.Response().Status < http.StatusBadRequest {
                    _ = rdb.Incr(context.WithoutCancel(ctx), genKey).Err()
                }
                return err
            }

            gen, err := rdb.Get(ctx, genKey).Int64()
            if err != nil && !errors.Is(err, redis.Nil) {
                return next(c)
            }
            key := cacheKey(cfg, c, gen)

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(raw, &hit) == nil {
                    return replay(c, hit)
                }
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.truncated {
                return nil
            }
            entry, err := json.Marshal(cachedResponse{
                Status: rec.status,
                Header: c.Response().Header().Clone(),
                Body:   rec.body.Bytes(),
            })
            if err == nil {
                _ = rdb.SetEx(context.WithoutCancel(ctx), key, entry, ttl).Err()
            }
            return nil
        }
    }
}

func replay(c echo.Context, hit cachedResponse) error {
    h := c.Response().Header()
    for k, vals := range hit.Header {
        if k == echo.HeaderContentLength || k == "X-Cache" || k == echo.HeaderXRequestID {
            continue
        }
        h[k] = vals
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(hit.Status)
    _, err := c.Response().Write(hit.Body)
    return err
}
