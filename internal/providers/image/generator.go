package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"postergen/internal/domain"
	"postergen/internal/infra"
)

// Backend performs a single call to an image-generation service and returns the image URLs it produced.
type Backend interface {
	GenerateOnce(ctx context.Context, req domain.GenerationRequest, seed int64) ([]string, error)
	Name() string
}

// Result aggregates the outcome of one Generate call. Images keep call order.
type Result struct {
	Images   []domain.GeneratedImage `json:"images"`
	Failures []*domain.UpstreamError `json:"-"`
	Calls    int                     `json:"calls"`
}

// FailureMessages returns the user-facing text of each failed call.
func (r *Result) FailureMessages() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Error())
	}
	return out
}

// URLs returns the image URLs in call order.
func (r *Result) URLs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Images))
	for _, img := range r.Images {
		out = append(out, img.URL)
	}
	return out
}

// Generator issues one backend call per requested image and tolerates per-call failures.
type Generator struct {
	backend Backend
	logger  zerolog.Logger
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks field ranges and enums. The returned error wraps domain.ErrInvalidRequest.
func ValidateRequest(req domain.GenerationRequest) error {
	if err := requestValidator.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err.Error())
	}
	return nil
}

func NewGenerator(backend Backend, logger *infra.Logger) (*Generator, error) {
	if backend == nil {
		return nil, errors.New("image backend is required")
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "image").Str("backend", backend.Name()).Logger()
	}
	return &Generator{backend: backend, logger: l}, nil
}

// Generate makes exactly req.Count sequential calls. A failed call is recorded in
// Result.Failures and the loop continues; an empty Images slice is a valid outcome.
// The error return is reserved for invalid requests and cancelled contexts.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (*Result, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	res := &Result{}
	for i := 0; i < req.Count; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Calls++
		urls, err := g.backend.GenerateOnce(ctx, req, req.SeedFor(i))
		if err != nil {
			failure := asUpstream(i, err)
			g.logger.Warn().Err(err).Int("index", i).Msg("image call failed")
			res.Failures = append(res.Failures, failure)
			continue
		}
		for _, u := range urls {
			res.Images = append(res.Images, domain.GeneratedImage{URL: u})
		}
	}
	g.logger.Info().
		Int("requested", req.Count).
		Int("images", len(res.Images)).
		Int("failures", len(res.Failures)).
		Msg("generation finished")
	return res, nil
}

func asUpstream(index int, err error) *domain.UpstreamError {
	var up *domain.UpstreamError
	if errors.As(err, &up) {
		copied := *up
		copied.Index = index
		return &copied
	}
	return &domain.UpstreamError{Index: index, Message: err.Error(), Err: err}
}
