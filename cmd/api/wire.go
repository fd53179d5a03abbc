package main

import (
	"context"
	"fmt"
	"time"

	"postergen/internal/adapter/repo"
	"postergen/internal/domain"
	"postergen/internal/http/handlers"
	"postergen/internal/infra"
	"postergen/internal/providers/comfyui"
	"postergen/internal/providers/image"
	"postergen/internal/providers/prompt"
)

const redisHistoryTTL = 30 * 24 * time.Hour

// newHistory opens the configured history backend and returns a cleanup func.
func newHistory(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (domain.HistoryRepository, func(), error) {
	switch cfg.HistoryBackend {
	case "redis":
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("history stored in redis")
		return repo.NewHistoryRepositoryRedis(rdb, cfg.HistoryLimit, redisHistoryTTL), func() { _ = rdb.Close() }, nil
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		pg := repo.NewHistoryRepositoryPG(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure history schema: %w", err)
		}
		logger.Info().Msg("history stored in postgres")
		return pg, pool.Close, nil
	default:
		return repo.NewHistoryRepositoryMemory(cfg.HistoryLimit), func() {}, nil
	}
}

// wireServices builds every remote client whose credentials are configured. Missing
// services stay nil and their endpoints answer 503.
func wireServices(cfg *infra.Config, logger *infra.Logger, deps *handlers.Deps) {
	if cfg.RephraserConfigured() {
		r, err := prompt.NewRephraser(prompt.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.DoubaoModel,
			Logger:  logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("prompt rephraser disabled")
		} else {
			deps.Rephraser = r
		}
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set; prompt rephraser disabled")
	}

	if cfg.ImageConfigured() {
		backend, err := newImageBackend(cfg)
		if err == nil {
			var gen *image.Generator
			gen, err = image.NewGenerator(backend, logger)
			if err == nil {
				deps.Generator = gen
			}
		}
		if err != nil {
			logger.Warn().Err(err).Str("backend", cfg.ImageBackend).Msg("image generation disabled")
		}
	} else {
		logger.Warn().Str("backend", cfg.ImageBackend).Msg("image credentials not set; image generation disabled")
	}

	client, err := comfyui.NewClient(comfyui.Options{
		BaseURL:      cfg.ComfyUIBaseURL,
		Logger:       logger,
		ModelName:    cfg.ComfyUIUpscaleModel,
		PollInterval: cfg.ComfyUIPollInterval(),
		Timeout:      cfg.ComfyUITimeout(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("upscaler disabled")
		return
	}
	deps.Upscaler = client
}

func newImageBackend(cfg *infra.Config) (image.Backend, error) {
	if cfg.ImageBackend == "ark" {
		return image.NewArkBackend(image.ArkOptions{
			APIKey:  cfg.ArkAPIKey,
			BaseURL: cfg.ArkBaseURL,
			Model:   cfg.ArkImageModel,
		})
	}
	return image.NewVisualBackend(image.VisualOptions{
		AccessKey: cfg.VolcengineAccessKey,
		SecretKey: cfg.VolcengineSecretKey,
		BaseURL:   cfg.VisualBaseURL,
		Region:    cfg.VisualRegion,
		Service:   cfg.VisualService,
		ReqKey:    cfg.VisualReqKey,
	})
}
