package image

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"postergen/internal/domain"
)

func newTestVisual(t *testing.T, handler http.HandlerFunc) *VisualBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backend, err := NewVisualBackend(VisualOptions{AccessKey: "AK", SecretKey: "SK", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewVisualBackend returned error: %v", err)
	}
	return backend
}

func TestVisualSendsSignedRequest(t *testing.T) {
	var body map[string]any
	var header http.Header
	var query string
	backend := newTestVisual(t, func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		query = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":{"image_urls":["https://cdn/a.png"]}}`))
	})
	req := validRequest()
	urls, err := backend.GenerateOnce(context.Background(), req, 7)
	if err != nil {
		t.Fatalf("GenerateOnce returned error: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://cdn/a.png" {
		t.Fatalf("urls = %v", urls)
	}
	if query != "Action=CVProcess&Version=2022-08-31" {
		t.Fatalf("query = %q", query)
	}
	xDate := header.Get("X-Date")
	if len(xDate) != len("20060102T150405Z") || header.Get("X-Content-Sha256") == "" {
		t.Fatalf("missing signing headers: %v", header)
	}
	auth := header.Get("Authorization")
	if !strings.HasPrefix(auth, "HMAC-SHA256 Credential=AK/"+xDate[:8]+"/cn-north-1/cv/request, SignedHeaders=") ||
		!strings.Contains(auth, "Signature=") {
		t.Fatalf("Authorization = %q", auth)
	}
	if !strings.HasPrefix(header.Get("Content-Type"), "application/json") {
		t.Fatalf("Content-Type = %q", header.Get("Content-Type"))
	}
	if body["req_key"] != "high_aes_general_v30l_zt2i" || body["seed"] != float64(7) || body["return_url"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["logo_info"]; ok {
		t.Fatalf("logo_info must be omitted when watermark is disabled: %v", body)
	}
}

func TestVisualWatermarkBlock(t *testing.T) {
	backend, err := NewVisualBackend(VisualOptions{AccessKey: "AK", SecretKey: "SK"})
	if err != nil {
		t.Fatalf("NewVisualBackend returned error: %v", err)
	}
	req := validRequest()
	req.Watermark = &domain.Watermark{Enabled: true, Position: domain.WatermarkTopRight, Language: domain.WatermarkEnglish, Opacity: 0.3, Text: "demo"}
	body := backend.buildRequest(req, -1)
	if body.LogoInfo == nil {
		t.Fatal("logo_info missing")
	}
	want := visualLogoInfo{AddLogo: true, Position: 3, Language: 1, Opacity: 0.3, LogoTextContent: "demo"}
	if *body.LogoInfo != want {
		t.Fatalf("logo_info = %+v, want %+v", *body.LogoInfo, want)
	}
	req.Watermark.Enabled = false
	if backend.buildRequest(req, -1).LogoInfo != nil {
		t.Fatal("logo_info present for disabled watermark")
	}
}

func TestVisualNonSuccessCode(t *testing.T) {
	backend := newTestVisual(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":50412,"message":"Post Img Risk Not Pass"}`))
	})
	_, err := backend.GenerateOnce(context.Background(), validRequest(), -1)
	var up *domain.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if up.Code != 50412 || up.Message != "Post Img Risk Not Pass" {
		t.Fatalf("unexpected error: %+v", up)
	}
}

func TestVisualGatewayError(t *testing.T) {
	backend := newTestVisual(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ResponseMetadata":{"Error":{"Code":"SignatureDoesNotMatch","Message":"bad signature"}}}`))
	})
	_, err := backend.GenerateOnce(context.Background(), validRequest(), -1)
	var up *domain.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if up.Status != http.StatusUnauthorized || !strings.Contains(up.Message, "bad signature") {
		t.Fatalf("unexpected error: %+v", up)
	}
}

func TestVisualMalformedResponse(t *testing.T) {
	backend := newTestVisual(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := backend.GenerateOnce(context.Background(), validRequest(), -1)
	var rf *domain.ResponseFormatError
	if !errors.As(err, &rf) {
		t.Fatalf("error = %v, want ResponseFormatError", err)
	}
}

func TestVisualRegionOverride(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"code":10000,"data":{"image_urls":[]}}`))
	}))
	t.Cleanup(srv.Close)
	backend, err := NewVisualBackend(VisualOptions{AccessKey: "AK", SecretKey: "SK", BaseURL: srv.URL, Region: "cn-beijing"})
	if err != nil {
		t.Fatalf("NewVisualBackend returned error: %v", err)
	}
	urls, err := backend.GenerateOnce(context.Background(), validRequest(), -1)
	if err != nil {
		t.Fatalf("GenerateOnce returned error: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("urls = %v", urls)
	}
	if !strings.Contains(auth, "/cn-beijing/cv/request") {
		t.Fatalf("Authorization = %q", auth)
	}
}

func TestVisualNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()
	backend, err := NewVisualBackend(VisualOptions{AccessKey: "AK", SecretKey: "SK", BaseURL: base})
	if err != nil {
		t.Fatalf("NewVisualBackend returned error: %v", err)
	}
	_, err = backend.GenerateOnce(context.Background(), validRequest(), -1)
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
}

func TestNewVisualBackendValidation(t *testing.T) {
	if _, err := NewVisualBackend(VisualOptions{AccessKey: "AK"}); err == nil {
		t.Fatal("expected error without secret key")
	}
	if _, err := NewVisualBackend(VisualOptions{AccessKey: "AK", SecretKey: "SK", BaseURL: "not a url"}); err == nil {
		t.Fatal("expected error for relative base url")
	}
}
