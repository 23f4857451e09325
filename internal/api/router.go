// Package api provides the HTTP API for the morning dashboard.
package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/api/handler"
	"github.com/morningdash/morningdash/internal/api/middleware"
	"github.com/morningdash/morningdash/internal/api/response"
	"github.com/morningdash/morningdash/internal/auth"
	"github.com/morningdash/morningdash/internal/clock"
	"github.com/morningdash/morningdash/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Tokens validates operator tokens on write endpoints. Leave nil to
	// disable auth; do not pass a typed nil pointer.
	Tokens middleware.TokenValidator

	Widget handler.WeatherWidget
	Quotes handler.QuoteSource
	Clock  *clock.Clock
	Hub    handler.StreamServer

	StoreName string
	Store     handler.Pinger
	Registry  *resilience.Registry

	// Prometheus serves /metrics when set.
	Prometheus http.Handler

	// DeckFS serves /deck when set.
	DeckFS fs.FS
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "morningdash"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		StoreName: cfg.StoreName,
		Store:     cfg.Store,
		Registry:  cfg.Registry,
		Logger:    cfg.Logger,
	})

	writeAuth := middleware.Auth(cfg.Tokens, auth.ScopeWeatherWrite)
	opsAuth := middleware.Auth(cfg.Tokens, auth.ScopeOpsRead)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	streamRateLimit := middleware.RateLimitByIP(middleware.StreamRateLimit)     // 30 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.ContentTypeJSON)

		// Ops endpoints (public, status requires ops:read)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(opsAuth).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Widget != nil {
			weatherHandler := handler.NewWeatherHandler(cfg.Widget, nil)

			r.Route("/weather", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", weatherHandler.GetWeather)

				// Actions reach the provider; per-operator strict limits.
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireJSON)
					r.Use(writeAuth)
					r.Use(middleware.RateLimitByOperator(middleware.FetchRateLimit))
					r.Post("/activate", weatherHandler.Activate)
					r.Post("/city", weatherHandler.SubmitCity)
					r.Post("/retry", weatherHandler.Retry)
					r.Post("/refresh", weatherHandler.Refresh)
				})
			})
		}

		if cfg.Quotes != nil {
			r.With(standardRateLimit).Get("/quote", handler.NewQuoteHandler(cfg.Quotes).GetQuote)
		}
		if cfg.Clock != nil {
			r.With(standardRateLimit).Get("/clock", handler.NewClockHandler(cfg.Clock).GetClock)
		}
		if cfg.Hub != nil {
			r.With(streamRateLimit).Get("/stream", handler.NewStreamHandler(cfg.Hub, cfg.Logger).Stream)
		}
	})

	if cfg.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Prometheus)
	}

	if cfg.DeckFS != nil {
		deckHandler := handler.NewDeckHandler(cfg.DeckFS, cfg.Logger)
		r.Get("/deck", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/deck/", http.StatusMovedPermanently)
		})
		r.With(middleware.DeckSecurityHeaders).Get("/deck/*", deckHandler.Serve)
	}

	return r
}
