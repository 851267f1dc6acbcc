package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/sparkbot/internal/api"
	"github.com/eldtechnologies/sparkbot/internal/config"
	"github.com/eldtechnologies/sparkbot/internal/handlers"
	"github.com/eldtechnologies/sparkbot/internal/models"
	"github.com/eldtechnologies/sparkbot/internal/ratelimit"
	"github.com/eldtechnologies/sparkbot/internal/spark"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx := context.Background()

	// Platform client for REST webhook enrichment
	var fetcher handlers.MessageFetcher
	if cfg.WebhookURI != "" {
		fetcher = spark.NewClient(cfg.APIURL, cfg.Token, cfg.FetchTimeout)
	}

	// Rate limiting backend
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled() {
		if cfg.RedisURL != "" {
			client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				logger.Fatal().Err(err).Msg("redis connection failed")
			}
			defer client.Close()
			limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitBurst, cfg.RateLimitWindow())
			logger.Info().Msg("rate limiting with Redis")
		} else {
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		}
	}

	h := handlers.NewHandler(logger, fetcher, handlers.Options{
		WebhookURI:     cfg.WebhookURI,
		IntegrationURI: cfg.IntegrationURI,
	})

	if err := h.OnMessage(logMessage); err != nil {
		logger.Fatal().Err(err).Msg("listener registration failed")
	}

	// Create router
	router := api.NewRouter(logger, cfg, h, limiter)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("health", cfg.HealthURI).
			Msg("starting sparkbot")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := h.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("message listeners still running at shutdown")
	}

	logger.Info().Msg("server stopped")
}

// logMessage is the default listener: it records each message received.
func logMessage(ctx context.Context, msg *models.Message) {
	zerolog.Ctx(ctx).Info().
		Str("room_id", msg.RoomID).
		Str("from", msg.PersonEmail).
		Bool("has_files", msg.HasFiles()).
		Str("text", msg.Text).
		Msg("message received")
}
