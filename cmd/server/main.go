package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"flight-tracker/internal/api"
	"flight-tracker/internal/auth"
	"flight-tracker/internal/config"
	"flight-tracker/internal/feed"
	"flight-tracker/internal/fetcher"
	"flight-tracker/internal/metrics"
	"flight-tracker/internal/registry"
	"flight-tracker/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (YAML)")
	logLevel := pflag.String("log-level", "", "override log level (debug, info, warn, error)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger is not up yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	if !cfg.HasCredentials() {
		// Degraded but valid: the server runs and serves empty feeds until
		// OPENSKY_CLIENT_ID / OPENSKY_CLIENT_SECRET are provided.
		log.Warn().Msg("missing OpenSky client credentials; API calls will fail until configured")
	}

	m := metrics.New()

	tokens := auth.NewTokenManager(
		cfg.OpenSky.AuthURL,
		cfg.OpenSky.ClientID,
		cfg.OpenSky.ClientSecret,
		cfg.OpenSky.AuthTimeout,
		log.With().Str("component", "auth").Logger(),
	)
	tokens.OnExchange = m.TokenRefreshes.Inc

	var limiter *rate.Limiter
	if cfg.OpenSky.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.OpenSky.MinInterval), 1)
	}

	client := fetcher.NewClient(
		cfg.OpenSky.BaseURL,
		tokens,
		cfg.OpenSky.RequestTimeout,
		log.With().Str("component", "fetcher").Logger(),
		fetcher.WithLimiter(limiter),
		fetcher.WithMetrics(m),
	)

	trackFetcher := fetcher.NewTrackFetcher(client, cfg.Feed.TrackCacheTTL,
		log.With().Str("component", "tracks").Logger())
	adapter := feed.New(trackFetcher, cfg.Feed.TrackLimit, cfg.Feed.TrackWorkers)

	var reg *registry.Registry
	if cfg.Storage.SightingsDir != "" {
		reg, err = registry.Open(cfg.Storage.SightingsDir,
			log.With().Str("component", "registry").Logger())
		if err != nil {
			log.Error().Err(err).Msg("sighting registry unavailable, continuing without it")
			reg = nil
		} else {
			defer reg.Close()
		}
	}

	// Warm up the token once at boot; failures retry on demand.
	if cfg.HasCredentials() {
		warmCtx, cancel := context.WithTimeout(context.Background(), cfg.OpenSky.AuthTimeout)
		if _, err := tokens.Token(warmCtx); err != nil {
			log.Warn().Err(err).Msg("token warm-up failed")
		}
		cancel()
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewServer(cfg, client, adapter, reg, m, log).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting flight tracker")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
