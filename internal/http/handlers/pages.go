package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"postergen/internal/domain"
	"postergen/internal/imaging"
	"postergen/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"poster", "generate", "upscale", "history"}

type pageSet struct {
	pages map[string]*template.Template
}

var pageFuncs = template.FuncMap{
	"mb": func(info *domain.ImageInfo) string {
		if info == nil {
			return ""
		}
		return fmt.Sprintf("%.2f MB", info.SizeMB())
	},
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
}

func mustParsePages() *pageSet {
	set := &pageSet{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t := template.Must(template.New("layout.html").Funcs(pageFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
		set.pages[name] = t
	}
	return set
}

type pageView struct {
	Page     string
	Locale   string
	T        func(string) string
	Error    string
	Services map[string]bool

	Form         generateForm
	AspectRatios []domain.AspectRatio
	Positions    []domain.WatermarkPosition
	MaxCount     int
	Record       *domain.GenerationRecord

	Upscale        *domain.UpscaleResult
	ExpectedWidth  int
	ExpectedHeight int
	SourceURL      string

	History []domain.GenerationRecord
}

// generateForm mirrors the inputs of the poster and test pages.
type generateForm struct {
	Idea        string
	AspectRatio string
	Prompt      string
	Width       int
	Height      int
	Count       int
	Seed        int64
	Scale       float64
	Expansion   bool
	Watermark   domain.Watermark
}

func defaultForm() generateForm {
	return generateForm{
		AspectRatio: domain.AspectRatios[0].Key,
		Width:       domain.DefaultWidth,
		Height:      domain.DefaultHeight,
		Count:       1,
		Seed:        domain.RandomSeed,
		Scale:       domain.DefaultScale,
		Expansion:   true,
		Watermark: domain.Watermark{
			Position: domain.WatermarkBottomRight,
			Language: domain.WatermarkChinese,
			Opacity:  0.3,
		},
	}
}

func (a *App) newView(r *http.Request, page string) *pageView {
	locale := middleware.LocaleFromContext(r.Context())
	return &pageView{
		Page:   page,
		Locale: locale,
		T:      translator(locale),
		Services: map[string]bool{
			"rephrase": a.Rephraser != nil,
			"generate": a.Generator != nil,
			"upscale":  a.Upscaler != nil,
			"history":  a.History != nil,
		},
		Form:         defaultForm(),
		AspectRatios: domain.AspectRatios,
		Positions: []domain.WatermarkPosition{
			domain.WatermarkBottomRight, domain.WatermarkBottomLeft,
			domain.WatermarkTopLeft, domain.WatermarkTopRight,
		},
		MaxCount: domain.MaxImageCount,
	}
}

func (a *App) render(w http.ResponseWriter, status int, view *pageView) {
	t, ok := a.pages.pages[view.Page]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", view); err != nil {
		a.logger.Error().Err(err).Str("page", view.Page).Msg("render page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows err on the page with the status the JSON API would use.
func (a *App) renderError(w http.ResponseWriter, r *http.Request, view *pageView, err error) {
	code, _ := statusFor(err)
	a.logger.Warn().Err(err).Str("page", view.Page).Int("status", code).Msg("page action failed")
	view.Error = err.Error()
	if code == http.StatusServiceUnavailable {
		view.Error = view.T("status.not_configured") + ": " + err.Error()
	}
	a.render(w, code, view)
}

func (a *App) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/poster", http.StatusFound)
}

func (a *App) PosterPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, a.newView(r, "poster"))
}

func (a *App) PosterSubmit(w http.ResponseWriter, r *http.Request) {
	view := a.newView(r, "poster")
	if err := r.ParseForm(); err != nil {
		a.renderError(w, r, view, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	view.Form.Idea = strings.TrimSpace(r.PostFormValue("idea"))
	view.Form.AspectRatio = domain.LookupAspectRatio(r.PostFormValue("aspect_ratio")).Key
	view.Form.Count = formInt(r, "count", 1)

	in := generateInput{
		Idea:        view.Form.Idea,
		AspectRatio: view.Form.AspectRatio,
		GenerationRequest: domain.GenerationRequest{
			Count:            view.Form.Count,
			UseTextExpansion: true,
			Seed:             domain.RandomSeed,
			Scale:            domain.DefaultScale,
		},
	}
	out, err := a.generate(r.Context(), in, view.Locale)
	if err != nil {
		a.renderError(w, r, view, err)
		return
	}
	view.Record = out.Record
	a.render(w, http.StatusOK, view)
}

func (a *App) GeneratePage(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, a.newView(r, "generate"))
}

func (a *App) GenerateSubmit(w http.ResponseWriter, r *http.Request) {
	view := a.newView(r, "generate")
	if err := r.ParseForm(); err != nil {
		a.renderError(w, r, view, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	f := &view.Form
	f.Prompt = strings.TrimSpace(r.PostFormValue("prompt"))
	f.Width = formInt(r, "width", domain.DefaultWidth)
	f.Height = formInt(r, "height", domain.DefaultHeight)
	f.Count = formInt(r, "count", 1)
	f.Seed = int64(formInt(r, "seed", int(domain.RandomSeed)))
	f.Scale = formFloat(r, "scale", domain.DefaultScale)
	f.Expansion = r.PostFormValue("use_text_expansion") != ""
	f.Watermark = domain.Watermark{
		Enabled:  r.PostFormValue("watermark") != "",
		Position: domain.WatermarkPosition(r.PostFormValue("watermark_position")),
		Language: domain.WatermarkLanguage(r.PostFormValue("watermark_language")),
		Opacity:  formFloat(r, "watermark_opacity", 0.3),
		Text:     strings.TrimSpace(r.PostFormValue("watermark_text")),
	}

	req := domain.GenerationRequest{
		Prompt:           f.Prompt,
		Width:            f.Width,
		Height:           f.Height,
		Count:            f.Count,
		UseTextExpansion: f.Expansion,
		Seed:             f.Seed,
		Scale:            f.Scale,
	}
	if f.Watermark.Enabled {
		wm := f.Watermark
		req.Watermark = &wm
	}
	if req.Prompt == "" {
		a.renderError(w, r, view, fmt.Errorf("%w: prompt is required", domain.ErrInvalidRequest))
		return
	}
	out, err := a.generate(r.Context(), generateInput{GenerationRequest: req}, view.Locale)
	if err != nil {
		a.renderError(w, r, view, err)
		return
	}
	view.Record = out.Record
	a.render(w, http.StatusOK, view)
}

func (a *App) UpscalePage(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, a.newView(r, "upscale"))
}

func (a *App) UpscaleSubmit(w http.ResponseWriter, r *http.Request) {
	view := a.newView(r, "upscale")
	src, err := readUpscaleSource(w, r)
	if err != nil {
		a.renderError(w, r, view, err)
		return
	}
	view.SourceURL = src.URL
	res, err := a.upscale(r.Context(), src)
	if err != nil {
		a.renderError(w, r, view, err)
		return
	}
	view.Upscale = res
	if res.Source != nil {
		view.ExpectedWidth, view.ExpectedHeight = res.Source.Expected(domain.UpscaleFactor)
	}
	a.render(w, http.StatusOK, view)
}

// UpscaleResult serves a stored upscale output. ?format=webp converts on the fly and
// ?download=1 sets an attachment disposition.
func (a *App) UpscaleResult(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		a.fail(w, r, fmt.Errorf("%w: result storage", domain.ErrNotConfigured))
		return
	}
	name := chi.URLParam(r, "name")
	data, err := a.Store.ReadUpscaled(r.Context(), name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	contentType := "application/octet-stream"
	if info, err := imaging.Inspect(data); err == nil {
		contentType = imaging.ContentType(info.Format)
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "webp") {
		quality, _ := strconv.Atoi(r.URL.Query().Get("quality"))
		converted, err := imaging.ToWebP(data, quality)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		data, contentType = converted, "image/webp"
		name = strings.TrimSuffix(name, pathExt(name)) + ".webp"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="upscaled-%s"`, name))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) HistoryPage(w http.ResponseWriter, r *http.Request) {
	view := a.newView(r, "history")
	if a.History == nil {
		a.renderError(w, r, view, fmt.Errorf("%w: history", domain.ErrNotConfigured))
		return
	}
	items, err := a.History.ListRecent(r.Context(), a.historyLimit)
	if err != nil {
		a.renderError(w, r, view, err)
		return
	}
	view.History = items
	a.render(w, http.StatusOK, view)
}

func formInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(key)))
	if err != nil {
		return def
	}
	return v
}

func formFloat(r *http.Request, key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue(key)), 64)
	if err != nil {
		return def
	}
	return v
}

func pathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
