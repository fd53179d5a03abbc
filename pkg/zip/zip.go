// Package zip bundles generated assets into a single archive download.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
	Modified time.Time
}

// ArchiveAssets writes assets into a zip archive. Duplicate file names get a numeric
// suffix so no entry shadows another.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := uniqueName(seen, asset.Filename)
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if !asset.Modified.IsZero() {
			header.Modified = asset.Modified
		}
		if strings.HasPrefix(asset.MIME, "image/") {
			header.Method = zip.Store
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(seen map[string]int, name string) string {
	name = strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if name == "" || name == "." {
		name = "file"
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(n+1) + ext
}
