package domain

import "time"

// UploadedAsset is a source image the workflow engine accepted.
type UploadedAsset struct {
	RemoteFilename string `json:"name"`
}

// ImageInfo describes decoded image metadata shown next to uploads and results.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Bytes  int64  `json:"bytes"`
}

// SizeMB returns the byte size in megabytes.
func (i ImageInfo) SizeMB() float64 {
	return float64(i.Bytes) / (1024 * 1024)
}

// UpscaleFactor is the magnification of the default upscale model.
const UpscaleFactor = 4

// Expected returns the dimensions after a fixed-factor upscale.
func (i ImageInfo) Expected(factor int) (int, int) {
	return i.Width * factor, i.Height * factor
}

// UpscaleResult is the output of a completed upscale pipeline.
type UpscaleResult struct {
	JobID     string      `json:"job_id"`
	Output    OutputImage `json:"output"`
	Data      []byte      `json:"-"`
	Source    *ImageInfo  `json:"source,omitempty"`
	Result    *ImageInfo  `json:"result,omitempty"`
	StoredAs  string      `json:"stored_as,omitempty"`
	Elapsed   string      `json:"elapsed"`
	CreatedAt time.Time   `json:"created_at"`
}
