package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/theatre-service/internal/config"
	"github.com/iliyamo/theatre-service/internal/database"
	"github.com/iliyamo/theatre-service/internal/handler"
	"github.com/iliyamo/theatre-service/internal/logging"
	"github.com/iliyamo/theatre-service/internal/middleware"
	"github.com/iliyamo/theatre-service/internal/queue"
	"github.com/iliyamo/theatre-service/internal/repository"
	"github.com/iliyamo/theatre-service/internal/router"
	"github.com/iliyamo/theatre-service/internal/service"
	"github.com/iliyamo/theatre-service/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, pinger, closeStore := openStores(ctx, cfg, logger)
	defer closeStore()

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn().Msg("redis unavailable, cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	var events service.Publisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewAMQPPublisher(cfg.AMQPURL, logger)
		go func() {
			if err := queue.StartEventConsumer(ctx, cfg.AMQPURL, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("event consumer stopped")
			}
		}()
	}

	assets := storage.NewDisk(cfg.MediaRoot, cfg.MediaURL)
	catalog := service.NewCatalog(stores, assets, events, logger)
	booking := service.NewBooking(stores, events, logger)
	accounts := service.NewAccounts(stores, service.TokenSettings{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, logger)
	if cfg.AdminEmail != "" {
		u, created, err := accounts.EnsureStaff(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("ensure admin account")
		}
		logger.Info().Uint64("user_id", u.ID).Bool("created", created).Msg("admin account ready")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = !cfg.IsProduction()
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		MediaURL:  cfg.MediaURL,
		MediaRoot: cfg.MediaRoot,
		MaxUpload: cfg.MaxUploadBytes,
		Health:    handler.Health(pinger),
		Auth:      handler.NewAuthHandler(accounts),
		Catalog:   handler.NewCatalogHandler(catalog, cfg.MaxUploadBytes),
		Booking:   handler.NewBookingHandler(booking),
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Logger:    logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("stopped")
}

// openStores picks the storage backend named by STORE_DRIVER.  The MySQL
// schema is applied on startup.
func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.Stores, handler.Pinger, func()) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		return service.MemoryStores(repository.NewMemoryStore()), nil, func() {}
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate")
	}
	return service.MySQLStores(db), db, func() { _ = db.Close() }
}
