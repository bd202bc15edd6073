package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/adoptionplatform/vetcare/internal/config"
	"github.com/adoptionplatform/vetcare/internal/domain/scheduling"
	"github.com/adoptionplatform/vetcare/internal/platform/auth"
	"github.com/adoptionplatform/vetcare/internal/platform/db"
	"github.com/adoptionplatform/vetcare/internal/platform/lock"
	"github.com/adoptionplatform/vetcare/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: X-Dev-User / X-Dev-Role headers are trusted")
	}

	e, cleanup, err := newServer(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer cleanup()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires stores, locker, middleware and routes. The returned
// cleanup closes any pools it opened.
func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*echo.Echo, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*echo.Echo, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fail(err)
	}

	var (
		pool     *pgxpool.Pool
		slots    scheduling.SlotRepository
		bookings scheduling.BookingRepository
		tx       scheduling.Transactor
	)
	switch cfg.StoreBackend {
	case "memory":
		store := scheduling.NewMemoryStore()
		slots, bookings, tx = store.Slots(), store.Bookings(), store
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fail(fmt.Errorf("connect to database: %w", err))
		}
		closers = append(closers, pool.Close)
		slots, bookings, tx = scheduling.NewSlotRepoPG(pool), scheduling.NewBookingRepoPG(pool), scheduling.NewTransactorPG(pool)
		logger.Info().Msg("connected to database")
	}

	var locker lock.Locker
	switch cfg.LockBackend {
	case "redis":
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { client.Close() })
		locker = lock.NewRedisLocker(client, cfg.LockTTL, cfg.LockTimeout, logger)
		logger.Info().Msg("connected to redis")
	default:
		locker = lock.NewMemoryLocker(cfg.LockTimeout)
	}

	svc := scheduling.NewService(slots, bookings, tx, locker, scheduling.NewTimeParser(loc), logger)

	// Request-scoped loggers derive from this one.
	zerolog.DefaultContextLogger = &logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevUserHeader, auth.DevRoleHeader},
	}))
	e.Use(echomw.BodyLimit("64K"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	if cfg.AuthSigningKey != "" {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api/vet")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	scheduling.NewHandler(svc).RegisterRoutes(api)

	return e, cleanup, nil
}
