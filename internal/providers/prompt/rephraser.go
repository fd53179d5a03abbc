package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"postergen/internal/domain"
	"postergen/internal/infra"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultModel       = "doubao-1-5-pro-32k-250115"
	defaultBaseURL     = "https://ark.cn-beijing.volces.com/api/v3"
	defaultMaxTokens   = 200
	defaultTemperature = 0.7
)

const systemInstruction = "你是一个专业的红色年代海报设计师。请根据用户输入的内容，生成一个复古大字报风格的插画描述。" +
	"格式必须是：'生成[合适的主体描述]作为主体，复古大字报风格的插画，背景是[相关背景元素]，底部是[相关标语]'。" +
	"要体现红色年代的热情、团结、奋进精神，不要出现敏感内容如人民、革命等"

const userTemplate = "请为以下内容生成红色年代海报风格的提示词：%s"

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPClient  *http.Client
	Logger      *infra.Logger
	MaxTokens   int
	Temperature float64
}

// Rephraser turns a short idea into a poster prompt through a chat-completion endpoint.
type Rephraser struct {
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
	logger      zerolog.Logger
	maxTokens   int
	temperature float64
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewRephraser(opts Options) (*Rephraser, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("chat completion api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "rephraser").Logger()
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Rephraser{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		client:      client,
		logger:      logger,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Rephrase returns the trimmed text of the first completion choice. The idea is
// sent as-is; callers reject empty input.
func (r *Rephraser) Rephrase(ctx context.Context, idea string) (string, error) {
	payload := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: fmt.Sprintf(userTemplate, idea)},
		},
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	started := time.Now()
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", &domain.NetworkError{Op: "chat completion", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.NetworkError{Op: "chat completion", Err: err}
	}
	if resp.StatusCode >= 300 {
		return "", upstreamError(resp.StatusCode, body)
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &domain.ResponseFormatError{Op: "chat completion", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &domain.ResponseFormatError{Op: "chat completion", Err: errors.New("no choices")}
	}
	content := out.Choices[0].Message.Content
	if content == nil {
		return "", &domain.ResponseFormatError{Op: "chat completion", Err: errors.New("choices[0].message.content missing")}
	}
	text := strings.TrimSpace(*content)
	r.logger.Debug().
		Str("model", r.model).
		Dur("elapsed", time.Since(started)).
		Int("chars", len([]rune(text))).
		Msg("prompt rephrased")
	return text, nil
}

func upstreamError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var parsed chatErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &domain.UpstreamError{Index: -1, Status: status, Message: msg}
}
