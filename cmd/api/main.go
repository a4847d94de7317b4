package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/handler"
	"github.com/fairyhunter13/recycling-rewards/internal/metrics"
	"github.com/fairyhunter13/recycling-rewards/internal/middleware"
	"github.com/fairyhunter13/recycling-rewards/internal/notify"
	"github.com/fairyhunter13/recycling-rewards/internal/repository"
	"github.com/fairyhunter13/recycling-rewards/internal/service"
	"github.com/fairyhunter13/recycling-rewards/internal/validator"
	"github.com/fairyhunter13/recycling-rewards/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	closeLog := initLogger(cfg)
	defer closeLog()

	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		log.Info().Msg("schema applied")
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Notify.Driver).Msg("failed to initialize notifier")
	}

	auth, err := middleware.NewAuth(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth")
	}

	m := metrics.New()

	app := fiber.New(fiber.Config{
		AppName:      "Recycling Rewards",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())
	app.Use(m.Middleware())

	validate := validator.New()

	// Repositories
	tokenRepo := repository.NewTokenRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)

	// Services
	rewardService := service.NewRewardService(userRepo, couponRepo, notifier, cfg.Reward, cfg.Notify.Timeout, m)
	tokenService := service.NewTokenService(pool, tokenRepo, userRepo, rewardService, cfg.Ledger, m)
	userService := service.NewUserService(userRepo, couponRepo)

	// Handlers
	tokenHandler := handler.NewTokenHandler(tokenService, validate)
	adminHandler := handler.NewAdminHandler(tokenService, validate)
	userHandler := handler.NewUserHandler(userService, rewardService, validate)
	healthHandler := handler.NewHealthHandler(pool, 2*time.Second, cfg.Notify.Driver)

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", m.Handler())

	// Public routes
	app.Get("/api/points", tokenHandler.PointTable)
	app.Get("/api/leaderboard", userHandler.Leaderboard)

	// Authenticated routes
	api := app.Group("/api", auth)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.ScanRPS, cfg.RateLimit.ScanBurst)
		api.Post("/tokens/redeem", limiter.Handler("redeem", m), tokenHandler.Redeem)
	} else {
		api.Post("/tokens/redeem", tokenHandler.Redeem)
	}
	api.Get("/tokens/:id", tokenHandler.GetToken)
	api.Get("/users/me", userHandler.Profile)
	api.Put("/users/me", userHandler.UpdateProfile)
	api.Get("/users/me/coupons", userHandler.Coupons)
	api.Post("/users/me/bin/reset", userHandler.ResetBin)
	api.Post("/users/me/bin/notify", userHandler.RetryNotification)
	api.Get("/leaderboard/me", userHandler.Rank)

	// Admin routes
	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.Post("/tokens", adminHandler.Mint)
	admin.Post("/tokens/bulk", adminHandler.MintBulk)
	admin.Get("/tokens", adminHandler.ListTokens)
	admin.Get("/stats", adminHandler.Stats)
	admin.Get("/users", userHandler.ListUsers)

	// Start server with graceful shutdown
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("notifier", cfg.Notify.Driver).
			Str("auth_mode", cfg.Auth.Mode).
			Int("reward_threshold", cfg.Reward.Threshold).
			Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests, including pending notifications)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if limiter != nil {
		limiter.Stop()
	}
	if c, ok := notifier.(notify.Closer); ok {
		c.Close()
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
// When LOG_FILE is set, output is duplicated into a size-rotated file.
// The returned func closes the file.
func initLogger(cfg *config.Config) func() {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var console io.Writer = os.Stdout
	if cfg.Log.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	if cfg.Log.File == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return func() {}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	return func() { _ = file.Close() }
}
