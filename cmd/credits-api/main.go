package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/ratelimit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/scheduler"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/handlers"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/metrics"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/utils"

	_ "github.com/MuhamadAgungGumelar/kit-credits-be/cmd/credits-api/docs"
)

// @title Kit Credits API
// @version 1.0
// @description Credit ledger, referrals and gamification for the kit marketplace
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("❌ credits-api stopped")
	}
}

// run serves until a signal arrives or the listener fails. Deferred cleanup always runs before it returns.
func run(cfg *config.Config) error {
	log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("🚀 Starting credits-api")

	jwtService := auth.NewJWTService(cfg.JWTSecret, 0)
	if !jwtService.Enabled() {
		if cfg.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		log.Warn().Msg("⚠️ JWT_SECRET not set, authentication disabled")
	}

	store, err := credits.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("❌ Failed to close store")
		}
	}()

	module := credits.NewModule(store, cfg)

	// Monthly reset
	sched := scheduler.NewScheduler()
	err = sched.AddJob("monthly-reset", cfg.ResetSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := module.ResetJob.Run(ctx); err != nil {
			log.Error().Err(err).Msg("❌ Scheduled monthly reset failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid RESET_SCHEDULE: %w", err)
	}

	// Rate limiter for tool runs
	limiter := ratelimit.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	err = sched.AddJob("rate-limit-cleanup", "@every 5m", func() {
		if n := limiter.Cleanup(); n > 0 {
			log.Debug().Int("removed", n).Msg("🧹 Dropped idle rate limiters")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule limiter cleanup: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName: "Kit Credits API",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(utils.RequestLogger())
	app.Use(metrics.Middleware())

	// Swagger and metrics
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handlers.RegisterRoutes(app, module.Handlers(cfg.StoreDriver), jwtService, limiter)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("🛑 Shutting down credits-api...")
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
