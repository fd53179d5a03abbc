package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"postergen/internal/domain"
	"postergen/internal/imaging"
	"postergen/pkg/zip"
)

const maxArchiveImageBytes = 30 << 20

// ArchiveHistory downloads every image of a record and streams them back as one zip
// together with the prompt text. Images that cannot be fetched are skipped.
func (a *App) ArchiveHistory(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	assets := []zip.Asset{{
		Filename: "prompt.txt",
		MIME:     "text/plain",
		Data:     []byte(promptText(rec)),
		Modified: rec.CreatedAt,
	}}
	for i, u := range rec.ImageURLs {
		data, err := a.downloadImage(r.Context(), u)
		if err != nil {
			a.logger.Warn().Err(err).Str("record_id", rec.ID).Int("index", i).Msg("skip archive image")
			continue
		}
		ext, mimeType := "bin", "application/octet-stream"
		if info, err := imaging.Inspect(data); err == nil {
			ext, mimeType = info.Format, imaging.ContentType(info.Format)
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("image-%02d.%s", i+1, ext),
			MIME:     mimeType,
			Data:     data,
			Modified: rec.CreatedAt,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="poster-%s.zip"`, rec.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func promptText(rec *domain.GenerationRecord) string {
	var b strings.Builder
	if rec.Idea != "" {
		b.WriteString("idea: " + rec.Idea + "\n")
	}
	b.WriteString("prompt: " + rec.Prompt + "\n")
	fmt.Fprintf(&b, "size: %dx%d\n", rec.Width, rec.Height)
	return b.String()
}

func (a *App) downloadImage(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "download image", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.UpstreamError{Index: -1, Status: resp.StatusCode, Message: "image download failed"}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArchiveImageBytes))
}
