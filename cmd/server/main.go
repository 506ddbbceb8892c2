package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/config"
	httpDelivery "github.com/visualmatch/backend/internal/delivery/http"
	"github.com/visualmatch/backend/internal/domain"
	"github.com/visualmatch/backend/internal/infrastructure/cache"
	"github.com/visualmatch/backend/internal/infrastructure/customsearch"
	"github.com/visualmatch/backend/internal/infrastructure/gemini"
	"github.com/visualmatch/backend/internal/infrastructure/imagefetch"
	"github.com/visualmatch/backend/internal/usecase"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg)

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("starting visualmatch backend v1.0.0")

	ctx := context.Background()

	// Initialize infrastructure dependencies
	model, err := newVisionModel(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gemini client")
	}

	searchClient, err := customsearch.NewClient(ctx, customsearch.Config{
		APIKey:            cfg.Search.APIKey,
		CX:                cfg.Search.CX,
		BaseURL:           cfg.Search.BaseURL,
		Timeout:           cfg.Search.Timeout,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create search client")
	}

	fetcher := imagefetch.NewFetcher(cfg.Image.Timeout, cfg.Image.MaxBytes)

	store := cache.NewResultStore(cfg.Cache.CleanupInterval)
	defer store.Close()
	log.Info().Dur("ttl", cfg.Cache.TTL).Msg("result store ready")

	// Initialize usecase layer
	analyzer := usecase.NewAnalysisService(model)
	enricher := usecase.NewEnrichmentService(analyzer, fetcher, usecase.EnrichmentConfig{
		MaxComparisons: cfg.Enrichment.MaxComparisons,
		Throttle:       usecase.NewIntervalThrottle(cfg.Enrichment.CompareInterval),
	})
	matcher := usecase.NewMatcherService(analyzer, searchClient, fetcher, store, enricher, usecase.MatcherServiceConfig{
		Credentials:        cfg.Credentials(),
		ResultTTL:          cfg.Cache.TTL,
		EnableDebugLogging: cfg.Log.Debug,
	})

	if !matcher.Configured() {
		log.Warn().Msg("gemini key, search key or search engine ID missing: searches will answer 503")
	}

	log.Info().
		Str("provider", cfg.Gemini.Provider).
		Str("model", cfg.Gemini.Model).
		Int("max_comparisons", cfg.Enrichment.MaxComparisons).
		Dur("compare_interval", cfg.Enrichment.CompareInterval).
		Msg("matcher configured")

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(matcher, cfg.Image.MaxBytes)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server listening")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.Server.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newVisionModel(ctx context.Context, cfg *config.Config) (domain.VisionModel, error) {
	opts := gemini.ClientOpts{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	}

	// genai.NewClient rejects an empty key
	if cfg.Gemini.Provider == config.ProviderGenAI && opts.APIKey != "" {
		return gemini.NewSDKClient(ctx, opts, cfg.Gemini.APIVersion)
	}
	return gemini.NewClient(opts), nil
}
