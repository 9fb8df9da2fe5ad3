package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theatre-service/internal/config"
	"github.com/iliyamo/theatre-service/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, userID uint64, staff bool) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, staff, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	g := e.Group("", JWTAuth(secret))
	g.GET("/me", func(c echo.Context) error {
		id, ok := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "ok": ok, "staff": IsStaff(c)})
	})

	rec := serve(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")

	rec = serve(e, http.MethodGet, "/me", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := utils.NewAccessToken("other-secret", 1, true, 5)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/me", "Bearer "+other.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", bearer(t, 12, true))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":12,"ok":true,"staff":true}`, rec.Body.String())
}

func TestStaffOrReadOnly(t *testing.T) {
	e := echo.New()
	g := e.Group("", JWTAuth(secret), StaffOrReadOnly())
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	g.GET("/plays", ok)
	g.POST("/plays", ok)

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/plays", bearer(t, 1, false)).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/plays", bearer(t, 1, false)).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/plays", bearer(t, 2, true)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/plays", "").Code)
}

func TestRedisCacheHitMissAndInvalidation(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}

	calls := 0
	e := echo.New()
	g := e.Group("", JWTAuth(secret), NewRedisCache(cfg, rdb))
	g.GET("/plays/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "calls": calls})
	})
	g.POST("/plays", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })
	g.POST("/broken", func(c echo.Context) error { return c.NoContent(http.StatusBadRequest) })

	auth := bearer(t, 1, true)
	first := serve(e, http.MethodGet, "/plays/1", auth)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(e, http.MethodGet, "/plays/1", auth)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// another path under the same route is a different entry
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/plays/2", auth).Header().Get("X-Cache"))

	// another user never sees the first user's entry
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/plays/1", bearer(t, 2, false)).Header().Get("X-Cache"))

	// a failed write keeps the cache
	serve(e, http.MethodPost, "/broken", auth)
	assert.Equal(t, "HIT", serve(e, http.MethodGet, "/plays/1", auth).Header().Get("X-Cache"))

	// a successful write invalidates everything
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/plays", auth).Code)
	third := serve(e, http.MethodGet, "/plays/1", auth)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.NotEqual(t, first.Body.String(), third.Body.String())
}

func TestRedisCacheKeyIncludesHost(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}
	e := echo.New()
	e.GET("/plays/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"image": "http://" + c.Request().Host + "/media/a.jpg"})
	}, JWTAuth(secret), NewRedisCache(cfg, rdb))

	get := func(host string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/plays/1", nil)
		req.Host = host
		req.Header.Set(echo.HeaderAuthorization, bearer(t, 1, false))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, "MISS", get("a.example").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get("a.example").Header().Get("X-Cache"))
	other := get("b.example")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Contains(t, other.Body.String(), "http://b.example/media/a.jpg")
}

func TestRedisCacheDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "x") },
		NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "user",
		Prefix:         "test:rl",
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(secret), NewTokenBucket(cfg, rdb, zerolog.Nop()))

	alice := bearer(t, 1, false)
	first := serve(e, http.MethodGet, "/x", alice)
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", alice).Code)

	blocked := serve(e, http.MethodGet, "/x", alice)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// buckets are per user
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", bearer(t, 2, false)).Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf)))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := serve(e, http.MethodGet, "/x", "")
	rid := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, rid, 36)
	assert.Contains(t, buf.String(), `"request_id":"`+rid+`"`)
	assert.Contains(t, buf.String(), `"status":204`)

	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(buf.String(), `"status":404`), buf.String())
}
