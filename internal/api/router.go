package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/sparkbot/internal/api/middleware"
	"github.com/eldtechnologies/sparkbot/internal/config"
	"github.com/eldtechnologies/sparkbot/internal/handlers"
	"github.com/eldtechnologies/sparkbot/internal/ratelimit"
)

// NewRouter creates and configures the HTTP router. limiter may be nil to
// disable rate limiting. The handler is frozen once routes are mounted, so
// its listener must be registered beforehand.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, limiter ratelimit.Limiter) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	if cfg.MetricsEnabled() {
		r.Handle(cfg.MetricsURI, promhttp.Handler())
	}

	r.Get(cfg.HealthURI, h.Health)

	// Inbound routes share the rate limiter
	var inbound []func(http.Handler) http.Handler
	if limiter != nil {
		inbound = append(inbound, middleware.NewRateLimiter(limiter, logger, cfg.RateLimitWhitelist).Middleware)
	}

	if cfg.WebhookURI != "" {
		webhook := r.With(inbound...)
		if cfg.Secret != "" {
			webhook = webhook.With(middleware.VerifySignature([]byte(cfg.Secret), logger))
		}
		webhook.Get(cfg.WebhookURI, h.PostRequired)
		webhook.Post(cfg.WebhookURI, h.Webhook)
		logger.Info().Str("uri", cfg.WebhookURI).Bool("signed", cfg.Secret != "").Msg("REST webhook mode enabled")
	}

	if cfg.IntegrationURI != "" {
		integration := r.With(inbound...)
		integration.Get(cfg.IntegrationURI, h.PostRequired)
		integration.Post(cfg.IntegrationURI, h.Integration)
		logger.Info().Str("uri", cfg.IntegrationURI).Msg("outgoing integration mode enabled")
	}

	h.Freeze()

	return r
}
