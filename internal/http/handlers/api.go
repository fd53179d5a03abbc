package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"postergen/internal/domain"
	"postergen/internal/middleware"
	"postergen/internal/providers/comfyui"
)

const maxUploadBytes = 20 << 20

type rephraseRequest struct {
	Idea string `json:"idea" jsonschema:"minLength=1"`
}

type rephraseResponse struct {
	Idea   string `json:"idea"`
	Prompt string `json:"prompt"`
}

func (a *App) RephrasePrompt(w http.ResponseWriter, r *http.Request) {
	var req rephraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	prompt, err := a.rephrase(r.Context(), req.Idea)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, rephraseResponse{Idea: strings.TrimSpace(req.Idea), Prompt: prompt})
}

type generateResponse struct {
	ID       string                  `json:"id"`
	Prompt   string                  `json:"prompt"`
	Images   []domain.GeneratedImage `json:"images"`
	Failures []string                `json:"failures"`
	Calls    int                     `json:"calls"`
}

func (a *App) GenerateImages(w http.ResponseWriter, r *http.Request) {
	// an omitted seed means a random one, not zero
	in := generateInput{GenerationRequest: domain.GenerationRequest{Seed: domain.RandomSeed}}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	out, err := a.generate(r.Context(), in, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	images := out.Result.Images
	if images == nil {
		images = []domain.GeneratedImage{}
	}
	failures := out.Record.Failures
	if failures == nil {
		failures = []string{}
	}
	a.json(w, http.StatusOK, generateResponse{
		ID:       out.Record.ID,
		Prompt:   out.Record.Prompt,
		Images:   images,
		Failures: failures,
		Calls:    out.Result.Calls,
	})
}

type upscaleResponse struct {
	*domain.UpscaleResult
	ExpectedWidth  int    `json:"expected_width,omitempty"`
	ExpectedHeight int    `json:"expected_height,omitempty"`
	DownloadURL    string `json:"download_url,omitempty"`
	WebPURL        string `json:"webp_url,omitempty"`
	ImageBase64    string `json:"image_base64,omitempty"`
}

func newUpscaleResponse(res *domain.UpscaleResult) upscaleResponse {
	out := upscaleResponse{UpscaleResult: res}
	if res.Source != nil {
		out.ExpectedWidth, out.ExpectedHeight = res.Source.Expected(domain.UpscaleFactor)
	}
	if res.StoredAs != "" {
		out.DownloadURL = "/upscale/results/" + res.StoredAs
		out.WebPURL = out.DownloadURL + "?format=webp"
	} else {
		out.ImageBase64 = base64.StdEncoding.EncodeToString(res.Data)
	}
	return out
}

// UpscaleImage accepts a multipart "image" file, a multipart "url" field or a JSON {"url"} body.
func (a *App) UpscaleImage(w http.ResponseWriter, r *http.Request) {
	src, err := readUpscaleSource(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.upscale(r.Context(), src)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newUpscaleResponse(res))
}

func readUpscaleSource(w http.ResponseWriter, r *http.Request) (comfyui.Source, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return comfyui.Source{}, fmt.Errorf("%w: invalid payload", domain.ErrInvalidRequest)
		}
		u, err := validateSourceURL(body.URL)
		return comfyui.Source{URL: u}, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return comfyui.Source{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return comfyui.Source{}, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidRequest, err)
		}
		if len(data) == 0 {
			return comfyui.Source{}, fmt.Errorf("%w: uploaded file is empty", domain.ErrInvalidRequest)
		}
		return comfyui.Source{Data: data, Filename: header.Filename}, nil
	case errors.Is(err, http.ErrMissingFile):
		u, err := validateSourceURL(r.FormValue("url"))
		return comfyui.Source{URL: u}, err
	default:
		return comfyui.Source{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
}

func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.fail(w, r, fmt.Errorf("%w: history", domain.ErrNotConfigured))
		return
	}
	limit := a.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.History.ListRecent(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.GenerationRecord{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetHistory(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, rec)
}

func (a *App) loadRecord(w http.ResponseWriter, r *http.Request) (*domain.GenerationRecord, bool) {
	if a.History == nil {
		a.fail(w, r, fmt.Errorf("%w: history", domain.ErrNotConfigured))
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return nil, false
	}
	rec, err := a.History.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return rec, true
}
