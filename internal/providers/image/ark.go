package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"

	"postergen/internal/domain"
)

const (
	defaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkModel   = "doubao-seedream-4-0-250828"
)

type ArkOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ArkBackend generates images through the Ark runtime Seedream models.
type ArkBackend struct {
	model    string
	generate func(ctx context.Context, req model.GenerateImagesRequest) (model.ImagesResponse, error)
}

func NewArkBackend(opts ArkOptions) (*ArkBackend, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ark api key is required")
	}
	client := arkruntime.NewClientWithApiKey(
		strings.TrimSpace(opts.APIKey),
		arkruntime.WithBaseUrl(coalesce(opts.BaseURL, defaultArkBaseURL)),
	)
	return &ArkBackend{
		model: coalesce(opts.Model, defaultArkModel),
		generate: func(ctx context.Context, req model.GenerateImagesRequest) (model.ImagesResponse, error) {
			return client.GenerateImages(ctx, req)
		},
	}, nil
}

func (a *ArkBackend) Name() string { return "ark" }

func (a *ArkBackend) buildRequest(req domain.GenerationRequest, seed int64) model.GenerateImagesRequest {
	return model.GenerateImagesRequest{
		Model:          a.model,
		Prompt:         req.Prompt,
		Size:           volcengine.String(fmt.Sprintf("%dx%d", req.Width, req.Height)),
		ResponseFormat: volcengine.String(model.GenerateImagesResponseFormatURL),
		Watermark:      volcengine.Bool(req.WatermarkEnabled()),
		Seed:           volcengine.Int64(seed),
	}
}

func (a *ArkBackend) GenerateOnce(ctx context.Context, req domain.GenerationRequest, seed int64) ([]string, error) {
	resp, err := a.generate(ctx, a.buildRequest(req, seed))
	if err != nil {
		return nil, &domain.UpstreamError{Index: -1, Message: err.Error(), Err: err}
	}
	if resp.Error != nil {
		return nil, &domain.UpstreamError{Index: -1, Message: resp.Error.Code + ": " + resp.Error.Message}
	}
	urls := make([]string, 0, len(resp.Data))
	for _, image := range resp.Data {
		if image.Url != nil && *image.Url != "" {
			urls = append(urls, *image.Url)
		}
	}
	return urls, nil
}
