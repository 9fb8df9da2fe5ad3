package router

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theatre-service/internal/config"
	"github.com/iliyamo/theatre-service/internal/handler"
	"github.com/iliyamo/theatre-service/internal/queue"
	"github.com/iliyamo/theatre-service/internal/repository"
	"github.com/iliyamo/theatre-service/internal/service"
	"github.com/iliyamo/theatre-service/internal/storage"
	"github.com/iliyamo/theatre-service/internal/utils"
)

const secret = "router-secret"

type app struct {
	e       *echo.Echo
	catalog *service.Catalog
}

func newApp(t *testing.T, maxUpload int64) *app {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	root := t.TempDir()
	stores := service.MemoryStores(repository.NewMemoryStore())
	cat := service.NewCatalog(stores, storage.NewDisk(root, "/media/"), queue.NopPublisher{}, zerolog.Nop())
	booking := service.NewBooking(stores, queue.NopPublisher{}, zerolog.Nop())
	accounts := service.NewAccounts(stores, service.TokenSettings{Secret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}, zerolog.Nop())

	e := echo.New()
	e.Validator = handler.NewValidator()
	Register(e, Deps{
		JWTSecret: secret,
		MediaURL:  "/media/",
		MediaRoot: root,
		MaxUpload: maxUpload,
		Health:    handler.Health(nil),
		Auth:      handler.NewAuthHandler(accounts),
		Catalog:   handler.NewCatalogHandler(cat, maxUpload),
		Booking:   handler.NewBookingHandler(booking),
		Redis:     rdb,
		Cache: config.CacheConfig{
			Enabled:      true,
			Methods:      map[string]bool{http.MethodGet: true},
			TTL:          time.Minute,
			KeyStrategy:  "route_query",
			Prefix:       "test:cache",
			MaxBodyBytes: 1 << 20,
		},
		Logger: zerolog.Nop(),
	})
	return &app{e: e, catalog: cat}
}

func auth(t *testing.T, id uint64, staff bool) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, staff, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func (a *app) do(method, target, authz string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func multipartImage(t *testing.T, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "poster.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, size, size))))
	return buf.Bytes()
}

func TestHealthAndAuthBoundaries(t *testing.T) {
	a := newApp(t, 1<<20)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/theatre/plays/", "", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/user/me/", "", nil, "").Code)

	body := []byte(`{"name":"Drama"}`)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/theatre/genres/", auth(t, 2, false), body, echo.MIMEApplicationJSON).Code)
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/theatre/genres/", auth(t, 1, true), body, echo.MIMEApplicationJSON).Code)
}

func TestWritesInvalidateCatalogCache(t *testing.T) {
	a := newApp(t, 1<<20)
	staff := auth(t, 1, true)

	first := a.do(http.MethodGet, "/api/theatre/genres/", staff, nil, "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", a.do(http.MethodGet, "/api/theatre/genres/", staff, nil, "").Header().Get("X-Cache"))

	rec := a.do(http.MethodPost, "/api/theatre/genres/", staff, []byte(`{"name":"Drama"}`), echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code)

	after := a.do(http.MethodGet, "/api/theatre/genres/", staff, nil, "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.JSONEq(t, `[{"id":1,"name":"Drama"}]`, after.Body.String())
}

func TestUploadedImageIsServed(t *testing.T) {
	a := newApp(t, 1<<20)
	p, err := a.catalog.CreatePlay(context.Background(), service.PlayInput{Title: "The Tempest", Description: "Storm"})
	require.NoError(t, err)

	body, ct := multipartImage(t, pngBytes(t, 8))
	rec := a.do(http.MethodPost, "/api/theatre/plays/"+strconv.FormatUint(p.ID, 10)+"/upload-image/", auth(t, 1, true), body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var detail struct {
		Image string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	u, err := url.Parse(detail.Image)
	require.NoError(t, err)

	served := a.do(http.MethodGet, u.Path, "", nil, "")
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "image/png", served.Header().Get(echo.HeaderContentType))
}

func TestUploadBodyLimit(t *testing.T) {
	a := newApp(t, 1024)
	p, err := a.catalog.CreatePlay(context.Background(), service.PlayInput{Title: "Big", Description: "Poster"})
	require.NoError(t, err)

	body, ct := multipartImage(t, bytes.Repeat([]byte{0xff}, 200<<10))
	rec := a.do(http.MethodPost, "/api/theatre/plays/"+strconv.FormatUint(p.ID, 10)+"/upload-image/", auth(t, 1, true), body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestReservationsAreNotSharedThroughCache(t *testing.T) {
	a := newApp(t, 1<<20)
	ctx := context.Background()
	p, err := a.catalog.CreatePlay(ctx, service.PlayInput{Title: "Hamlet", Description: "Tragedy"})
	require.NoError(t, err)
	h, err := a.catalog.CreateHall(ctx, "Main", 5, 5)
	require.NoError(t, err)
	pf, err := a.catalog.CreatePerformance(ctx, service.PerformanceInput{
		ShowTime: time.Date(2030, 1, 1, 19, 0, 0, 0, time.UTC), Play: p.ID, TheatreHall: h.ID,
	})
	require.NoError(t, err)

	alice, bob := auth(t, 10, false), auth(t, 11, false)
	assert.JSONEq(t, `[]`, a.do(http.MethodGet, "/api/theatre/reservations/", alice, nil, "").Body.String())

	body := []byte(`{"tickets":[{"row":1,"seat":1,"performance":` + strconv.FormatUint(pf.ID, 10) + `}]}`)
	rec := a.do(http.MethodPost, "/api/theatre/reservations/", bob, body, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.JSONEq(t, `[]`, a.do(http.MethodGet, "/api/theatre/reservations/", alice, nil, "").Body.String())
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(a.do(http.MethodGet, "/api/theatre/reservations/", bob, nil, "").Body.Bytes(), &mine))
	assert.Len(t, mine, 1)
}
