package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"postergen/internal/domain"
)

func TestSanitizeKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "upscaled/a.png", want: "upscaled/a.png"},
		{in: "/upscaled//a.png", want: "upscaled/a.png"},
		{in: `upscaled\a.png`, want: "upscaled/a.png"},
		{in: "../etc/passwd", wantErr: true},
		{in: "a/../../b", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSaveAndReadUpscaled(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()
	data := []byte("png-bytes")
	name, err := store.SaveUpscaled(ctx, "ComfyUI_00001_.PNG", data)
	if err != nil {
		t.Fatalf("SaveUpscaled returned error: %v", err)
	}
	if filepath.Ext(name) != ".png" {
		t.Fatalf("name %q does not keep the lowercased extension", name)
	}
	got, err := store.ReadUpscaled(ctx, name)
	if err != nil {
		t.Fatalf("ReadUpscaled returned error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("ReadUpscaled = %q, want %q", got, data)
	}
	other, err := store.SaveUpscaled(ctx, "noext", data)
	if err != nil {
		t.Fatalf("SaveUpscaled returned error: %v", err)
	}
	if !strings.HasSuffix(other, ".png") || other == name {
		t.Fatalf("unexpected second name %q", other)
	}
}

func TestReadUpscaledMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	for _, name := range []string{"missing.png", "../secret", ""} {
		if _, err := store.ReadUpscaled(context.Background(), name); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("ReadUpscaled(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}
