package router // package router defines how HTTP routes are registered for the API

import (
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/theatre-service/internal/config"
	"github.com/iliyamo/theatre-service/internal/handler"
	"github.com/iliyamo/theatre-service/internal/middleware"
)

// Deps carries everything the routes need.  Redis may be nil, in which
// case caching and rate limiting are skipped.
type Deps struct {
	JWTSecret string
	MediaURL  string
	MediaRoot string
	MaxUpload int64

	Health  echo.HandlerFunc
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Booking *handler.BookingHandler

	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Logger    zerolog.Logger
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	if d.Health != nil {
		e.GET("/healthz", d.Health)
	}
	if d.MediaURL != "" && d.MediaRoot != "" {
		e.Static(d.MediaURL, d.MediaRoot)
	}
	RegisterAuth(e, d)
	RegisterTheatre(e, d)
}

// RegisterAuth mounts /api/user.  Register, token and refresh are open;
// me and logout need an access token.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/api/user")
	g.POST("/register/", d.Auth.Register)
	g.POST("/token/", d.Auth.Login)
	g.POST("/token/refresh/", d.Auth.Refresh)

	authed := g.Group("", middleware.JWTAuth(d.JWTSecret))
	authed.GET("/me/", d.Auth.Me)
	authed.POST("/logout/", d.Auth.Logout)
}

// RegisterTheatre mounts /api/theatre.  Every route requires a user;
// catalog writes additionally require staff.
func RegisterTheatre(e *echo.Echo, d Deps) {
	api := e.Group("/api/theatre",
		middleware.JWTAuth(d.JWTSecret),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger),
		middleware.NewRedisCache(d.Cache, d.Redis),
	)

	// reservations are open to any authenticated user
	api.GET("/reservations/", d.Booking.List)
	api.POST("/reservations/", d.Booking.Create)

	cat := api.Group("", middleware.StaffOrReadOnly())
	cat.GET("/genres/", d.Catalog.ListGenres)
	cat.POST("/genres/", d.Catalog.CreateGenre)
	cat.GET("/actors/", d.Catalog.ListActors)
	cat.POST("/actors/", d.Catalog.CreateActor)
	cat.GET("/theatre_halls/", d.Catalog.ListHalls)
	cat.POST("/theatre_halls/", d.Catalog.CreateHall)

	cat.GET("/plays/", d.Catalog.ListPlays)
	cat.POST("/plays/", d.Catalog.CreatePlay)
	cat.GET("/plays/:id/", d.Catalog.GetPlay)
	upload := []echo.MiddlewareFunc{}
	if d.MaxUpload > 0 {
		// leave room for the multipart envelope
		upload = append(upload, echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{Limit: bodyLimit(d.MaxUpload + 64<<10)}))
	}
	cat.POST("/plays/:id/upload-image/", d.Catalog.UploadPlayImage, upload...)

	cat.GET("/performances/", d.Catalog.ListPerformances)
	cat.POST("/performances/", d.Catalog.CreatePerformance)
	cat.GET("/performances/:id/", d.Catalog.GetPerformance)
}

// bodyLimit renders a byte count in the "<n>K" form echo's BodyLimit
// expects.
func bodyLimit(n int64) string {
	kb := (n + 1023) / 1024
	return strconv.FormatInt(kb, 10) + "K"
}
