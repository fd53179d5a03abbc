package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"postergen/internal/http/handlers"
	"postergen/internal/infra"
	"postergen/internal/middleware"
)

// Options configures the shared middleware stack.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute, http.MethodPost))
	}

	r.Get("/v1/healthz", app.Health)

	// Pages
	r.Get("/", app.Index)
	r.Get("/poster", app.PosterPage)
	r.Post("/poster", app.PosterSubmit)
	r.Get("/generate", app.GeneratePage)
	r.Post("/generate", app.GenerateSubmit)
	r.Get("/upscale", app.UpscalePage)
	r.Post("/upscale", app.UpscaleSubmit)
	r.Get("/upscale/results/{name}", app.UpscaleResult)
	r.Get("/history", app.HistoryPage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/prompts/rephrase", app.RephrasePrompt)
		r.Post("/images/generate", app.GenerateImages)
		r.Post("/upscale", app.UpscaleImage)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", app.ListHistory)
			r.Get("/{id}", app.GetHistory)
			r.Get("/{id}/archive", app.ArchiveHistory)
		})
		r.Get("/schema/{name}", app.Schema)
	})

	return r
}
