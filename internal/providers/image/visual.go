package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/volcengine/volc-sdk-golang/base"
	"github.com/volcengine/volc-sdk-golang/service/visual"

	"postergen/internal/domain"
)

const (
	defaultVisualRegion = "cn-north-1"
	defaultVisualReqKey = "high_aes_general_v30l_zt2i"
	visualAction        = "CVProcess"
	visualSuccessCode   = 10000
	visualTimeout       = 60 * time.Second
)

type VisualOptions struct {
	AccessKey  string
	SecretKey  string
	BaseURL    string
	Region     string
	Service    string
	ReqKey     string
	HTTPClient *http.Client
}

// VisualBackend calls the Volcengine visual CVProcess action through the visual SDK client,
// which signs every request with the configured AK/SK.
type VisualBackend struct {
	sdk    *visual.Visual
	reqKey string
}

type visualLogoInfo struct {
	AddLogo         bool    `json:"add_logo"`
	Position        int     `json:"position"`
	Language        int     `json:"language"`
	Opacity         float64 `json:"opacity"`
	LogoTextContent string  `json:"logo_text_content"`
}

type visualRequest struct {
	ReqKey    string          `json:"req_key"`
	Prompt    string          `json:"prompt"`
	UsePreLLM bool            `json:"use_pre_llm"`
	Seed      int64           `json:"seed"`
	Scale     float64         `json:"scale"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	ReturnURL bool            `json:"return_url"`
	LogoInfo  *visualLogoInfo `json:"logo_info,omitempty"`
}

type visualResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		ImageURLs []string `json:"image_urls"`
	} `json:"data"`
	ResponseMetadata *struct {
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"ResponseMetadata"`
}

func NewVisualBackend(opts VisualOptions) (*VisualBackend, error) {
	if strings.TrimSpace(opts.AccessKey) == "" || strings.TrimSpace(opts.SecretKey) == "" {
		return nil, errors.New("volcengine access key and secret key are required")
	}
	sdk := visual.NewInstance()
	sdk.Client.SetAccessKey(strings.TrimSpace(opts.AccessKey))
	sdk.Client.SetSecretKey(strings.TrimSpace(opts.SecretKey))
	// Visual.SetRegion writes the package-level ServiceInfo; region and service stay on this client.
	sdk.Client.SetCredential(base.Credentials{
		Region:  coalesce(opts.Region, defaultVisualRegion),
		Service: coalesce(opts.Service, visual.ServiceName),
	})
	sdk.Client.SetScheme("https")
	if raw := strings.TrimSpace(opts.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, errors.New("volcengine visual base url must be an absolute url")
		}
		sdk.Client.SetScheme(u.Scheme)
		sdk.Client.SetHost(u.Host)
	}
	sdk.Client.SetTimeout(visualTimeout)
	if opts.HTTPClient != nil {
		sdk.Client.Client = opts.HTTPClient
	}
	return &VisualBackend{sdk: sdk, reqKey: coalesce(opts.ReqKey, defaultVisualReqKey)}, nil
}

func (v *VisualBackend) Name() string { return "visual" }

// GenerateOnce sends one CVProcess request. logo_info is only attached when the watermark is enabled.
func (v *VisualBackend) GenerateOnce(ctx context.Context, req domain.GenerationRequest, seed int64) ([]string, error) {
	body, err := json.Marshal(v.buildRequest(req, seed))
	if err != nil {
		return nil, err
	}
	raw, status, err := v.sdk.Client.CtxJson(ctx, visualAction, nil, string(body))
	if err != nil && !isGatewayStatusError(err) {
		return nil, &domain.NetworkError{Op: "cv process", Err: err}
	}
	var out visualResponse
	if jerr := json.Unmarshal(raw, &out); jerr != nil {
		if status >= 300 {
			return nil, &domain.UpstreamError{Index: -1, Status: status, Message: truncate(strings.TrimSpace(string(raw)), 512)}
		}
		return nil, &domain.ResponseFormatError{Op: "cv process", Err: jerr}
	}
	if out.ResponseMetadata != nil && out.ResponseMetadata.Error != nil && out.ResponseMetadata.Error.Message != "" {
		return nil, &domain.UpstreamError{
			Index:   -1,
			Status:  status,
			Message: out.ResponseMetadata.Error.Code + ": " + out.ResponseMetadata.Error.Message,
		}
	}
	if out.Code != visualSuccessCode {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, &domain.UpstreamError{Index: -1, Status: status, Code: out.Code, Message: msg}
	}
	if out.Data == nil {
		return nil, nil
	}
	return out.Data.ImageURLs, nil
}

// isGatewayStatusError reports whether the SDK error is a non-2xx answer whose body is still worth decoding.
func isGatewayStatusError(err error) bool {
	return strings.HasPrefix(err.Error(), "api ")
}

func (v *VisualBackend) buildRequest(req domain.GenerationRequest, seed int64) visualRequest {
	body := visualRequest{
		ReqKey:    v.reqKey,
		Prompt:    req.Prompt,
		UsePreLLM: req.UseTextExpansion,
		Seed:      seed,
		Scale:     req.Scale,
		Width:     req.Width,
		Height:    req.Height,
		ReturnURL: true,
	}
	if req.WatermarkEnabled() {
		wm := req.Watermark
		body.LogoInfo = &visualLogoInfo{
			AddLogo:         true,
			Position:        wm.Position.Code(),
			Language:        wm.Language.Code(),
			Opacity:         wm.Opacity,
			LogoTextContent: wm.Text,
		}
	}
	return body
}

func coalesce(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
