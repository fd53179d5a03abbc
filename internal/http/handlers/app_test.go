package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"postergen/internal/adapter/repo"
	"postergen/internal/domain"
	"postergen/internal/infra"
	"postergen/internal/middleware"
	"postergen/internal/providers/comfyui"
	imagegen "postergen/internal/providers/image"
	"postergen/internal/storage"
)

type fakeRephraser struct {
	out   string
	err   error
	ideas []string
}

func (f *fakeRephraser) Rephrase(_ context.Context, idea string) (string, error) {
	f.ideas = append(f.ideas, idea)
	return f.out, f.err
}

type fakeGenerator struct {
	res  *imagegen.Result
	err  error
	reqs []domain.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (*imagegen.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.res == nil {
		return &imagegen.Result{Calls: req.Count}, nil
	}
	return f.res, nil
}

type fakeUpscaler struct {
	res     *domain.UpscaleResult
	err     error
	sources []comfyui.Source
}

func (f *fakeUpscaler) Upscale(_ context.Context, src comfyui.Source) (*domain.UpscaleResult, error) {
	f.sources = append(f.sources, src)
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.res
	return &copied, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestApp(t *testing.T, deps Deps) *App {
	t.Helper()
	if deps.Config == nil {
		deps.Config = &infra.Config{HistoryLimit: 10}
	}
	app := NewApp(deps)
	app.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return app
}

func TestGenerateRephrasesIdeaAndSavesHistory(t *testing.T) {
	reph := &fakeRephraser{out: "红色年代宣传画，工人与麦田"}
	gen := &fakeGenerator{res: &imagegen.Result{
		Images:   []domain.GeneratedImage{{URL: "https://img.example/1.png"}},
		Failures: []*domain.UpstreamError{{Index: 1, Code: 50411, Message: "risk control"}},
		Calls:    2,
	}}
	history := repo.NewHistoryRepositoryMemory(10)
	app := newTestApp(t, Deps{Rephraser: reph, Generator: gen, History: history})

	out, err := app.generate(context.Background(), generateInput{
		Idea:              "  工人  ",
		AspectRatio:       "16:9",
		GenerationRequest: domain.GenerationRequest{Count: 2, Seed: -1},
	}, "en")
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if len(reph.ideas) != 1 || reph.ideas[0] != "工人" {
		t.Fatalf("unexpected rephrase calls: %v", reph.ideas)
	}
	if len(gen.reqs) != 1 {
		t.Fatalf("expected one generator call, got %d", len(gen.reqs))
	}
	req := gen.reqs[0]
	if req.Prompt != reph.out || req.Width != 1664 || req.Height != 936 || req.Count != 2 || req.Scale != domain.DefaultScale {
		t.Fatalf("unexpected request: %+v", req)
	}
	rec := out.Record
	if rec.Idea != "工人" || rec.Locale != "en" || len(rec.ImageURLs) != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Failures) != 1 || !strings.Contains(rec.Failures[0], "image 2 generation failed: risk control (code=50411)") {
		t.Fatalf("unexpected failures: %v", rec.Failures)
	}

	stored, err := history.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("history get: %v", err)
	}
	if stored.Prompt != reph.out {
		t.Fatalf("stored prompt = %q", stored.Prompt)
	}
}

func TestGenerateKeepsExplicitPrompt(t *testing.T) {
	reph := &fakeRephraser{out: "unused"}
	gen := &fakeGenerator{}
	app := newTestApp(t, Deps{Rephraser: reph, Generator: gen})

	out, err := app.generate(context.Background(), generateInput{
		GenerationRequest: domain.GenerationRequest{Prompt: "  a poster ", Width: 1024, Height: 768, Count: 1, Seed: 7},
	}, "zh")
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if len(reph.ideas) != 0 {
		t.Fatalf("rephraser should not be called, got %v", reph.ideas)
	}
	if gen.reqs[0].Prompt != "a poster" || gen.reqs[0].Width != 1024 {
		t.Fatalf("unexpected request: %+v", gen.reqs[0])
	}
	if len(out.Record.ImageURLs) != 0 {
		t.Fatalf("expected empty image list, got %v", out.Record.ImageURLs)
	}
}

func TestGenerateImagesSeedDefault(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{name: "omitted", body: `{"prompt":"cat","count":3}`, want: domain.RandomSeed},
		{name: "explicit zero", body: `{"prompt":"cat","count":3,"seed":0}`, want: 0},
		{name: "concrete", body: `{"prompt":"cat","count":3,"seed":42}`, want: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			app := newTestApp(t, Deps{Generator: gen})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/images/generate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			app.GenerateImages(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
			if len(gen.reqs) != 1 || gen.reqs[0].Seed != tt.want {
				t.Fatalf("seed sent = %+v, want %d", gen.reqs, tt.want)
			}
			if tt.want == domain.RandomSeed {
				for i := 0; i < 3; i++ {
					if got := gen.reqs[0].SeedFor(i); got != domain.RandomSeed {
						t.Fatalf("SeedFor(%d) = %d, want random", i, got)
					}
				}
			}
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		in   generateInput
		want error
	}{
		{
			name: "no generator",
			deps: Deps{},
			in:   generateInput{GenerationRequest: domain.GenerationRequest{Prompt: "x"}},
			want: domain.ErrNotConfigured,
		},
		{
			name: "no prompt and no idea",
			deps: Deps{Generator: &fakeGenerator{}, Rephraser: &fakeRephraser{}},
			in:   generateInput{},
			want: domain.ErrInvalidRequest,
		},
		{
			name: "idea without rephraser",
			deps: Deps{Generator: &fakeGenerator{}},
			in:   generateInput{Idea: "spring"},
			want: domain.ErrNotConfigured,
		},
		{
			name: "count out of range",
			deps: Deps{Generator: &fakeGenerator{}},
			in:   generateInput{GenerationRequest: domain.GenerationRequest{Prompt: "x", Count: 9}},
			want: domain.ErrInvalidRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, tt.deps)
			_, err := app.generate(context.Background(), tt.in, "zh")
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if gen, ok := tt.deps.Generator.(*fakeGenerator); ok && len(gen.reqs) != 0 {
				t.Fatalf("generator should not be called, got %d calls", len(gen.reqs))
			}
		})
	}
}

func TestUpscaleInspectsAndStores(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	result := pngBytes(t, 40, 32)
	up := &fakeUpscaler{res: &domain.UpscaleResult{
		JobID:  "42",
		Output: domain.OutputImage{Filename: "out.png", Type: "output"},
		Data:   result,
	}}
	app := newTestApp(t, Deps{Upscaler: up, Store: store})

	res, err := app.upscale(context.Background(), comfyui.Source{Data: pngBytes(t, 10, 8), Filename: "photo.png"})
	if err != nil {
		t.Fatalf("upscale returned error: %v", err)
	}
	if res.Source == nil || res.Source.Width != 10 || res.Source.Height != 8 {
		t.Fatalf("unexpected source info: %+v", res.Source)
	}
	if res.Result == nil || res.Result.Width != 40 || res.Result.Format != "png" {
		t.Fatalf("unexpected result info: %+v", res.Result)
	}
	if !strings.HasSuffix(res.StoredAs, ".png") {
		t.Fatalf("stored name = %q", res.StoredAs)
	}
	stored, err := store.ReadUpscaled(context.Background(), res.StoredAs)
	if err != nil {
		t.Fatalf("ReadUpscaled: %v", err)
	}
	if !bytes.Equal(stored, result) {
		t.Fatal("stored bytes differ from upscale output")
	}
}

func TestUpscaleRejectsBadSources(t *testing.T) {
	up := &fakeUpscaler{res: &domain.UpscaleResult{}}
	app := newTestApp(t, Deps{Upscaler: up})

	if _, err := app.upscale(context.Background(), comfyui.Source{Data: []byte("not an image")}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for undecodable data, got %v", err)
	}
	if _, err := app.upscale(context.Background(), comfyui.Source{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for empty source, got %v", err)
	}
	if len(up.sources) != 0 {
		t.Fatalf("upscaler should not be called, got %d calls", len(up.sources))
	}

	app = newTestApp(t, Deps{})
	if _, err := app.upscale(context.Background(), comfyui.Source{URL: "http://x/img.jpg"}); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid", fmt.Errorf("%w: bad", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"not configured", fmt.Errorf("%w: upscaler", domain.ErrNotConfigured), http.StatusServiceUnavailable},
		{"poll timeout", &domain.UpscaleError{Stage: domain.StagePoll, Err: &domain.TimeoutError{Timeout: 300 * time.Second}}, http.StatusGatewayTimeout},
		{"upload failure", &domain.UpscaleError{Stage: domain.StageUpload, Err: &domain.UploadError{Err: errors.New("refused")}}, http.StatusBadGateway},
		{"network", &domain.NetworkError{Op: "chat", Err: errors.New("dial")}, http.StatusBadGateway},
		{"format", &domain.ResponseFormatError{Op: "chat", Err: errors.New("no choices")}, http.StatusBadGateway},
		{"upstream", &domain.UpstreamError{Index: -1, Status: 500}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := statusFor(tt.err); code != tt.code {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, code, tt.code)
			}
		})
	}
}

func TestTranslator(t *testing.T) {
	if got := translator("en")("nav.poster"); got != "Poster" {
		t.Fatalf("en nav.poster = %q", got)
	}
	if got := translator("zh-CN")("nav.poster"); got != "海报生成" {
		t.Fatalf("zh nav.poster = %q", got)
	}
}

func withLocale(r *http.Request, locale string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.LocaleKey, locale))
}

func TestPagesRender(t *testing.T) {
	history := repo.NewHistoryRepositoryMemory(10)
	_ = history.Save(context.Background(), &domain.GenerationRecord{
		Prompt:    "red sun over the fields",
		Width:     1328,
		Height:    1328,
		ImageURLs: []string{"https://img.example/a.png"},
	})
	app := newTestApp(t, Deps{History: history, Generator: &fakeGenerator{}})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"poster", app.PosterPage, "Turn an idea into a red-era poster"},
		{"generate", app.GeneratePage, "Image generation test"},
		{"upscale", app.UpscalePage, "4x image upscaling"},
		{"history", app.HistoryPage, "red sun over the fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, withLocale(httptest.NewRequest(http.MethodGet, "/"+tt.name, nil), "en"))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Fatalf("page does not contain %q", tt.want)
			}
		})
	}
}

func TestPosterSubmitRendersFailures(t *testing.T) {
	gen := &fakeGenerator{res: &imagegen.Result{
		Failures: []*domain.UpstreamError{{Index: 0, Message: "quota exhausted"}},
		Calls:    1,
	}}
	app := newTestApp(t, Deps{Rephraser: &fakeRephraser{out: "poster prompt"}, Generator: gen})

	form := strings.NewReader("idea=harvest&aspect_ratio=4:3&count=1")
	req := httptest.NewRequest(http.MethodPost, "/poster", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.PosterSubmit(rec, withLocale(req, "en"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"poster prompt", "No image was generated", "image 1 generation failed: quota exhausted"} {
		if !strings.Contains(body, want) {
			t.Fatalf("page does not contain %q", want)
		}
	}
	if gen.reqs[0].Width != 1472 || gen.reqs[0].Height != 1104 {
		t.Fatalf("unexpected size %dx%d", gen.reqs[0].Width, gen.reqs[0].Height)
	}
}

func TestGenerateSubmitWithoutService(t *testing.T) {
	app := newTestApp(t, Deps{})
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("prompt=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.GenerateSubmit(rec, withLocale(req, "en"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "This service is not configured") {
		t.Fatal("expected not configured notice")
	}
}
