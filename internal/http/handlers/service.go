package handlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"postergen/internal/domain"
	"postergen/internal/imaging"
	"postergen/internal/providers/comfyui"
	"postergen/internal/providers/image"
)

// generateInput is the generation request plus the poster conveniences: an idea that is
// rephrased when no prompt is given and a named aspect ratio preset.
type generateInput struct {
	Idea        string `json:"idea,omitempty" jsonschema:"description=Short idea rephrased into a prompt when prompt is empty"`
	AspectRatio string `json:"aspect_ratio,omitempty" jsonschema:"enum=1:1,enum=4:3,enum=3:2,enum=16:9,enum=21:9"`
	domain.GenerationRequest
}

type generateOutcome struct {
	Record *domain.GenerationRecord
	Result *image.Result
}

func (a *App) rephrase(ctx context.Context, idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", fmt.Errorf("%w: idea is required", domain.ErrInvalidRequest)
	}
	if a.Rephraser == nil {
		return "", fmt.Errorf("%w: prompt rephraser", domain.ErrNotConfigured)
	}
	return a.Rephraser.Rephrase(ctx, idea)
}

// generate rephrases when needed, runs the generator and records the outcome in history.
// A partial or empty result is returned without error.
func (a *App) generate(ctx context.Context, in generateInput, locale string) (*generateOutcome, error) {
	if a.Generator == nil {
		return nil, fmt.Errorf("%w: image generation", domain.ErrNotConfigured)
	}
	req := in.GenerationRequest
	if in.AspectRatio != "" && req.Width == 0 && req.Height == 0 {
		ar := domain.LookupAspectRatio(in.AspectRatio)
		req.Width, req.Height = ar.Width, ar.Height
	}
	req.Normalize()
	if req.Prompt == "" {
		prompt, err := a.rephrase(ctx, in.Idea)
		if err != nil {
			return nil, err
		}
		req.Prompt = prompt
	}
	if err := image.ValidateRequest(req); err != nil {
		return nil, err
	}

	res, err := a.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	rec := &domain.GenerationRecord{
		ID:        uuid.NewString(),
		Idea:      strings.TrimSpace(in.Idea),
		Prompt:    req.Prompt,
		Width:     req.Width,
		Height:    req.Height,
		Count:     req.Count,
		Seed:      req.Seed,
		ImageURLs: res.URLs(),
		Failures:  res.FailureMessages(),
		Locale:    locale,
		CreatedAt: a.now().UTC(),
	}
	if a.History != nil {
		if err := a.History.Save(ctx, rec); err != nil {
			a.logger.Warn().Err(err).Str("record_id", rec.ID).Msg("failed to save history")
		}
	}
	return &generateOutcome{Record: rec, Result: res}, nil
}

func validateSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: image url must be an absolute http(s) url", domain.ErrInvalidRequest)
	}
	return raw, nil
}

// upscale runs the workflow, inspects source and result, and stores the output when a store is set.
func (a *App) upscale(ctx context.Context, src comfyui.Source) (*domain.UpscaleResult, error) {
	if a.Upscaler == nil {
		return nil, fmt.Errorf("%w: upscaler", domain.ErrNotConfigured)
	}
	var sourceInfo *domain.ImageInfo
	if len(src.Data) > 0 {
		info, err := imaging.Inspect(src.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: unsupported image: %v", domain.ErrInvalidRequest, err)
		}
		sourceInfo = info
	} else if src.URL == "" {
		return nil, fmt.Errorf("%w: image file or url is required", domain.ErrInvalidRequest)
	}

	res, err := a.Upscaler.Upscale(ctx, src)
	if err != nil {
		return nil, err
	}
	res.Source = sourceInfo
	if info, err := imaging.Inspect(res.Data); err == nil {
		res.Result = info
	}
	if a.Store != nil {
		name, err := a.Store.SaveUpscaled(ctx, res.Output.Filename, res.Data)
		if err != nil {
			a.logger.Warn().Err(err).Str("job_id", res.JobID).Msg("failed to store upscale result")
		} else {
			res.StoredAs = name
		}
	}
	return res, nil
}
