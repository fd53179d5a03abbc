package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string   `env:"APP_ENV" envDefault:"development"`
	Port               string   `env:"PORT" envDefault:"8080"`
	HTTPReadSeconds    int      `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPWriteSeconds   int      `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"330"`
	HTTPIdleSeconds    int      `env:"HTTP_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	RateLimitPerMin    int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	DefaultLocale      string   `env:"DEFAULT_LOCALE" envDefault:"zh"`
	GeoIPDBPath        string   `env:"GEOIP_DB_PATH"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	DoubaoModel   string `env:"DOUBAO_MODEL" envDefault:"doubao-1-5-pro-32k-250115"`

	ImageBackend        string `env:"IMAGE_BACKEND" envDefault:"visual"`
	VolcengineAccessKey string `env:"VOLCENGINE_ACCESS_KEY"`
	VolcengineSecretKey string `env:"VOLCENGINE_SECRET_KEY"`
	VisualBaseURL       string `env:"VISUAL_BASE_URL" envDefault:"https://visual.volcengineapi.com"`
	VisualRegion        string `env:"VISUAL_REGION" envDefault:"cn-north-1"`
	VisualService       string `env:"VISUAL_SERVICE" envDefault:"cv"`
	VisualReqKey        string `env:"VISUAL_REQ_KEY" envDefault:"high_aes_general_v30l_zt2i"`
	ArkAPIKey           string `env:"ARK_API_KEY"`
	ArkBaseURL          string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkImageModel       string `env:"ARK_IMAGE_MODEL" envDefault:"doubao-seedream-4-0-250828"`

	ComfyUIBaseURL        string `env:"COMFYUI_BASE_URL" envDefault:"http://127.0.0.1:8188"`
	ComfyUIUpscaleModel   string `env:"COMFYUI_UPSCALE_MODEL" envDefault:"RealESRGAN_x4plus.pth"`
	ComfyUIPollSeconds    int    `env:"COMFYUI_POLL_INTERVAL_SECONDS" envDefault:"2"`
	ComfyUITimeoutSeconds int    `env:"COMFYUI_TIMEOUT_SECONDS" envDefault:"300"`

	HistoryBackend string `env:"HISTORY_BACKEND" envDefault:"memory"`
	HistoryLimit   int    `env:"HISTORY_LIMIT" envDefault:"50"`
	RedisURL       string `env:"REDIS_URL"`
	DatabaseURL    string `env:"DATABASE_URL"`
	StoragePath    string `env:"STORAGE_PATH" envDefault:"./data"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ImageBackend = strings.ToLower(strings.TrimSpace(cfg.ImageBackend))
	cfg.HistoryBackend = strings.ToLower(strings.TrimSpace(cfg.HistoryBackend))
	cfg.OpenAIBaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	cfg.ComfyUIBaseURL = strings.TrimRight(cfg.ComfyUIBaseURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.ImageBackend {
	case "visual", "ark":
	default:
		errs = append(errs, fmt.Errorf("IMAGE_BACKEND must be visual or ark, got %q", c.ImageBackend))
	}
	switch c.HistoryBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when HISTORY_BACKEND=redis"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when HISTORY_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be memory, redis or postgres, got %q", c.HistoryBackend))
	}
	if c.ComfyUIPollSeconds <= 0 {
		errs = append(errs, errors.New("COMFYUI_POLL_INTERVAL_SECONDS must be positive"))
	}
	if c.ComfyUITimeoutSeconds <= 0 {
		errs = append(errs, errors.New("COMFYUI_TIMEOUT_SECONDS must be positive"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) HTTPReadTimeout() time.Duration {
	return time.Duration(c.HTTPReadSeconds) * time.Second
}

func (c *Config) HTTPWriteTimeout() time.Duration {
	return time.Duration(c.HTTPWriteSeconds) * time.Second
}

func (c *Config) HTTPIdleTimeout() time.Duration {
	return time.Duration(c.HTTPIdleSeconds) * time.Second
}

func (c *Config) ComfyUIPollInterval() time.Duration {
	return time.Duration(c.ComfyUIPollSeconds) * time.Second
}

func (c *Config) ComfyUITimeout() time.Duration {
	return time.Duration(c.ComfyUITimeoutSeconds) * time.Second
}

// RephraserConfigured reports whether the chat-completion credentials are present.
func (c *Config) RephraserConfigured() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// ImageConfigured reports whether the selected image backend has credentials.
func (c *Config) ImageConfigured() bool {
	if c.ImageBackend == "ark" {
		return strings.TrimSpace(c.ArkAPIKey) != ""
	}
	return strings.TrimSpace(c.VolcengineAccessKey) != "" && strings.TrimSpace(c.VolcengineSecretKey) != ""
}
