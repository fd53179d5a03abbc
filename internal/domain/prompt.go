package domain

import "strings"

// Sentinel seed asking the image service to pick a random seed on every call.
const RandomSeed int64 = -1

// WatermarkPosition is the corner the overlay mark is anchored to.
type WatermarkPosition string

const (
	WatermarkBottomRight WatermarkPosition = "bottom-right"
	WatermarkBottomLeft  WatermarkPosition = "bottom-left"
	WatermarkTopLeft     WatermarkPosition = "top-left"
	WatermarkTopRight    WatermarkPosition = "top-right"
)

// Code returns the numeric position used on the wire.
func (p WatermarkPosition) Code() int {
	switch p {
	case WatermarkBottomLeft:
		return 1
	case WatermarkTopLeft:
		return 2
	case WatermarkTopRight:
		return 3
	default:
		return 0
	}
}

// WatermarkLanguage selects the language of the default overlay text.
type WatermarkLanguage string

const (
	WatermarkChinese WatermarkLanguage = "zh"
	WatermarkEnglish WatermarkLanguage = "en"
)

// Code returns the numeric language used on the wire.
func (l WatermarkLanguage) Code() int {
	if l == WatermarkEnglish {
		return 1
	}
	return 0
}

// Watermark configures the optional overlay on generated images.
type Watermark struct {
	Enabled  bool              `json:"enabled"`
	Position WatermarkPosition `json:"position" validate:"omitempty,oneof=bottom-right bottom-left top-left top-right" jsonschema:"enum=bottom-right,enum=bottom-left,enum=top-left,enum=top-right"`
	Language WatermarkLanguage `json:"language" validate:"omitempty,oneof=zh en" jsonschema:"enum=zh,enum=en"`
	Opacity  float64           `json:"opacity" validate:"min=0,max=1" jsonschema:"minimum=0,maximum=1"`
	Text     string            `json:"text,omitempty" validate:"max=50" jsonschema:"maxLength=50"`
}

// GenerationRequest is the immutable input of one ImageGenerator call.
type GenerationRequest struct {
	Prompt           string     `json:"prompt" validate:"required,max=800" jsonschema:"maxLength=800"`
	Width            int        `json:"width" validate:"min=512,max=2048" jsonschema:"minimum=512,maximum=2048,default=1328"`
	Height           int        `json:"height" validate:"min=512,max=2048" jsonschema:"minimum=512,maximum=2048,default=1328"`
	Count            int        `json:"count" validate:"min=1,max=4" jsonschema:"minimum=1,maximum=4,default=1"`
	UseTextExpansion bool       `json:"use_text_expansion"`
	Seed             int64      `json:"seed" validate:"min=-1" jsonschema:"minimum=-1,default=-1,description=-1 picks a random seed per call"`
	Scale            float64    `json:"scale" validate:"min=1,max=10" jsonschema:"minimum=1,maximum=10,default=2.5"`
	Watermark        *Watermark `json:"watermark,omitempty" validate:"omitempty"`
}

const (
	DefaultScale  = 2.5
	DefaultWidth  = 1328
	DefaultHeight = 1328
	MaxImageCount = 4
)

// WatermarkEnabled reports whether a watermark block must be sent.
func (r GenerationRequest) WatermarkEnabled() bool {
	return r.Watermark != nil && r.Watermark.Enabled
}

// SeedFor returns the seed used for the call at index i. Concrete seeds are offset
// by the call index so repeated calls produce different, reproducible images.
func (r GenerationRequest) SeedFor(i int) int64 {
	if r.Seed < 0 {
		return RandomSeed
	}
	return r.Seed + int64(i)
}

// Normalize fills zero values with the defaults the forms start with.
func (r *GenerationRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Width == 0 {
		r.Width = DefaultWidth
	}
	if r.Height == 0 {
		r.Height = DefaultHeight
	}
	if r.Count == 0 {
		r.Count = 1
	}
	if r.Scale == 0 {
		r.Scale = DefaultScale
	}
	if r.Watermark != nil {
		if r.Watermark.Position == "" {
			r.Watermark.Position = WatermarkBottomRight
		}
		if r.Watermark.Language == "" {
			r.Watermark.Language = WatermarkChinese
		}
		r.Watermark.Text = strings.TrimSpace(r.Watermark.Text)
	}
}

// GeneratedImage is a single image URL returned by the generation service.
type GeneratedImage struct {
	URL string `json:"url"`
}

// AspectRatio is a named width/height preset offered by the poster page.
type AspectRatio struct {
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AspectRatios lists the presets in display order; the first entry is the default.
var AspectRatios = []AspectRatio{
	{Key: "1:1", Width: 1328, Height: 1328},
	{Key: "4:3", Width: 1472, Height: 1104},
	{Key: "3:2", Width: 1584, Height: 1056},
	{Key: "16:9", Width: 1664, Height: 936},
	{Key: "21:9", Width: 2016, Height: 864},
}

// LookupAspectRatio returns the preset for key, or the default preset when unknown.
func LookupAspectRatio(key string) AspectRatio {
	key = strings.TrimSpace(key)
	for _, ar := range AspectRatios {
		if ar.Key == key {
			return ar
		}
	}
	return AspectRatios[0]
}
