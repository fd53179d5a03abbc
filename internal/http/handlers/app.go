package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"postergen/internal/domain"
	"postergen/internal/infra"
	"postergen/internal/providers/comfyui"
	"postergen/internal/providers/image"
)

// Rephraser turns a short idea into an image prompt.
type Rephraser interface {
	Rephrase(ctx context.Context, idea string) (string, error)
}

// ImageGenerator produces image URLs for a generation request.
type ImageGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*image.Result, error)
}

// Upscaler runs the upload, submit, poll and fetch pipeline.
type Upscaler interface {
	Upscale(ctx context.Context, src comfyui.Source) (*domain.UpscaleResult, error)
}

// ResultStore keeps upscale results for later download.
type ResultStore interface {
	SaveUpscaled(ctx context.Context, outputFilename string, data []byte) (string, error)
	ReadUpscaled(ctx context.Context, name string) ([]byte, error)
}

// Deps groups the collaborators of App. Nil services render as not configured.
type Deps struct {
	Config     *infra.Config
	Logger     *infra.Logger
	Rephraser  Rephraser
	Generator  ImageGenerator
	Upscaler   Upscaler
	History    domain.HistoryRepository
	Store      ResultStore
	HTTPClient *http.Client
}

type App struct {
	Rephraser Rephraser
	Generator ImageGenerator
	Upscaler  Upscaler
	History   domain.HistoryRepository
	Store     ResultStore

	cfg          *infra.Config
	logger       zerolog.Logger
	client       *http.Client
	pages        *pageSet
	historyLimit int
	now          func() time.Time
}

func NewApp(deps Deps) *App {
	cfg := deps.Config
	if cfg == nil {
		cfg = &infra.Config{}
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().Str("component", "http").Logger()
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 50
	}
	return &App{
		Rephraser:    deps.Rephraser,
		Generator:    deps.Generator,
		Upscaler:     deps.Upscaler,
		History:      deps.History,
		Store:        deps.Store,
		cfg:          cfg,
		logger:       logger,
		client:       client,
		pages:        mustParsePages(),
		historyLimit: limit,
		now:          time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

// fail maps err onto a status and writes the JSON error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	ev := a.logger.Warn()
	if code >= http.StatusInternalServerError {
		ev = a.logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request failed")
	a.error(w, code, kind, err.Error())
}
