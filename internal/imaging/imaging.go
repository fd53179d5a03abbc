// Package imaging inspects source images and converts upscale results for download.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/webp"

	"postergen/internal/domain"
)

// DefaultWebPQuality is used when callers pass a non-positive quality.
const DefaultWebPQuality = 90

var ErrEmpty = errors.New("imaging: empty image data")

// Inspect decodes only the image header and returns dimensions, format and byte size.
func Inspect(data []byte) (*domain.ImageInfo, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode config: %w", err)
	}
	return &domain.ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Bytes:  int64(len(data)),
	}, nil
}

// ToWebP re-encodes any decodable image as WebP.
func ToWebP(data []byte, quality int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultWebPQuality
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType maps a decoder format name to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
