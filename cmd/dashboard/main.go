// Package main provides the entrypoint for the morning dashboard server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/api"
	"github.com/morningdash/morningdash/internal/api/middleware"
	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/auth"
	"github.com/morningdash/morningdash/internal/clock"
	"github.com/morningdash/morningdash/internal/config"
	"github.com/morningdash/morningdash/internal/database"
	"github.com/morningdash/morningdash/internal/geolocation"
	"github.com/morningdash/morningdash/internal/kvstore"
	"github.com/morningdash/morningdash/internal/metrics"
	"github.com/morningdash/morningdash/internal/provider/resilience"
	"github.com/morningdash/morningdash/internal/quote"
	"github.com/morningdash/morningdash/internal/stream"
	"github.com/morningdash/morningdash/internal/telemetry"
	"github.com/morningdash/morningdash/internal/weather"
	"github.com/morningdash/morningdash/internal/weather/openmeteo"
	"github.com/morningdash/morningdash/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "morningdash"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	issueToken := flag.String("issue-token", "", "print an operator token for the named operator and exit")
	tokenScopes := flag.String("scopes", auth.ScopeWeatherWrite+","+auth.ScopeOpsRead, "comma-separated scopes for -issue-token")
	tokenTTL := flag.Duration("token-ttl", auth.DefaultTokenExpiry, "validity of the token printed by -issue-token")
	flag.Parse()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			log.Error().Err(err).Msg("invalid configuration")
		}
		os.Exit(1)
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken, *tokenScopes, *tokenTTL); err != nil {
			log.Fatal().Err(err).Msg("failed to issue token")
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("dashboard stopped with error")
	}
}

func printToken(cfg *config.Config, operator, scopes string, ttl time.Duration) error {
	tokens, err := auth.NewJWTService(auth.JWTConfig{SigningKey: cfg.AuthSigningKey})
	if err != nil {
		return fmt.Errorf("AUTH_SIGNING_KEY is required to issue tokens: %w", err)
	}

	var scopeList []string
	for _, s := range strings.Split(scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopeList = append(scopeList, s)
		}
	}

	token, expiresAt, err := tokens.GenerateAccessToken(operator, ttl, scopeList...)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting morning dashboard")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing http metrics: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dashMetrics := metrics.New()
	if err := dashMetrics.Register(reg); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Key-value store behind both caches and the quote of the day
	store, err := kvstore.Open(ctx, kvstore.Config{
		Backend:    cfg.Store.Backend,
		SQLitePath: cfg.Store.SQLitePath,
		Redis: kvstore.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   serviceName + ":",
		},
		Postgres: databaseConfig(cfg.Database),
	})
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("store opened")

	registry := resilience.NewRegistry()

	locator, err := geolocation.New(geolocation.Config{
		Mode:     cfg.Geolocation.Mode,
		Lat:      cfg.Geolocation.Lat,
		Lon:      cfg.Geolocation.Lon,
		IPURL:    cfg.Geolocation.IPURL,
		Registry: registry,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	provider := openmeteo.NewClient(openmeteo.ClientConfig{
		ForecastURL:  cfg.Weather.ForecastURL,
		GeocodingURL: cfg.Weather.GeocodingURL,
		Registry:     registry,
		Logger:       log,
	})

	cacheCfg := weather.CacheConfig{Store: store, Logger: log, Recorder: dashMetrics}
	widget := weather.NewWidget(weather.WidgetConfig{
		Provider:      provider,
		Locator:       locator,
		WeatherCache:  weather.NewWeatherCache(cacheCfg),
		LocationCache: weather.NewLocationCache(cacheCfg),
		Logger:        log,
		Recorder:      dashMetrics,
		FetchTimeout:  cfg.Weather.FetchTimeout,
	})
	defer widget.Close()

	quotes := quote.NewService(quote.Config{
		Store:    store,
		Location: loc,
		Logger:   log,
		Recorder: dashMetrics,
	})
	dashClock := clock.New(loc, nil)

	hub := stream.NewHub(stream.HubConfig{
		Logger:           log,
		OnClientsChanged: dashMetrics.StreamClients,
	})
	defer hub.Close()

	unsubscribe := widget.Subscribe(func(snap weather.Snapshot) {
		hub.Publish(stream.TopicWeather, models.NewWeatherSnapshot(snap, time.Now()))
	})
	defer unsubscribe()

	scheduler := worker.NewScheduler(worker.SchedulerConfig{
		Clock:     dashClock,
		Quotes:    quotes,
		Publisher: hub,
		Recorder:  dashMetrics,
		Logger:    log,
	})
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.PubSub.ProjectID != "" {
		ps, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Trigger:          worker.NewRefreshTrigger(widget, dashMetrics, log),
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer ps.Close()

		go func() {
			if err := ps.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.RequireTLS,
		Widget:      widget,
		Quotes:      quotes,
		Clock:       dashClock,
		Hub:         hub,
		StoreName:   cfg.Store.Backend,
		Store:       store,
		Registry:    registry,
		Prometheus:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if cfg.AuthSigningKey != "" {
		tokens, err := auth.NewJWTService(auth.JWTConfig{SigningKey: cfg.AuthSigningKey})
		if err != nil {
			return err
		}
		routerCfg.Tokens = tokens
	} else {
		log.Warn().Msg("AUTH_SIGNING_KEY not set - weather actions are unauthenticated")
	}
	if cfg.DeckDir != "" {
		if info, err := os.Stat(cfg.DeckDir); err == nil && info.IsDir() {
			routerCfg.DeckFS = os.DirFS(cfg.DeckDir)
		} else {
			log.Warn().Str("deck_dir", cfg.DeckDir).Msg("deck directory not found - /deck disabled")
		}
	}

	// Resolve the initial state in the background; clients see locating or
	// loading until it settles.
	go widget.Activate(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	// Stream connections are hijacked and not tracked by Shutdown.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func databaseConfig(c config.DatabaseConfig) database.Config {
	db := database.DefaultConfig()
	db.Host = c.Host
	db.Port = c.Port
	db.User = c.User
	db.Password = c.Password
	db.Database = c.Name
	db.SSLMode = c.SSLMode
	return db
}
