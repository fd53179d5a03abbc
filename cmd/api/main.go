package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"postergen/internal/http/handlers"
	httpapi "postergen/internal/http/httpapi"
	"postergen/internal/infra"
	"postergen/internal/infra/geoip"
	"postergen/internal/middleware"
	"postergen/internal/storage"
)

func main() {
	_ = infra.LoadDotEnv()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	history, closeHistory, err := newHistory(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.HistoryBackend).Msg("failed to initialise history store")
	}
	defer closeHistory()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise result storage")
	}
	logger.Info().Str("path", store.BasePath()).Msg("result storage ready")

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	deps := handlers.Deps{
		Config:  cfg,
		Logger:  &logger,
		History: history,
		Store:   store,
	}
	wireServices(cfg, &logger, &deps)

	app := handlers.NewApp(deps)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
