package comfyui

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"postergen/internal/domain"
	"postergen/internal/infra"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 300 * time.Second
	defaultOutputType   = "output"
	defaultExtension    = "jpeg"
)

// Options configures the workflow client.
type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	ModelName    string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Source is an image to upscale: either a remote URL or raw bytes with an optional file name hint.
type Source struct {
	URL      string
	Data     []byte
	Filename string
}

// Client talks to a ComfyUI server: upload, queue, poll history and fetch outputs.
type Client struct {
	baseURL      string
	client       *http.Client
	logger       zerolog.Logger
	modelName    string
	pollInterval time.Duration
	timeout      time.Duration

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("comfyui base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "comfyui").Logger()
	}
	modelName := strings.TrimSpace(opts.ModelName)
	if modelName == "" {
		modelName = DefaultModelName
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:      baseURL,
		client:       client,
		logger:       logger,
		modelName:    modelName,
		pollInterval: interval,
		timeout:      timeout,
		now:          time.Now,
		wait:         sleepContext,
	}, nil
}

// Timeout returns the default polling deadline used by Upscale.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Upload sends the source image to the server and returns the name it was stored under.
func (c *Client) Upload(ctx context.Context, src Source) (*domain.UploadedAsset, error) {
	data := src.Data
	if strings.TrimSpace(src.URL) != "" {
		downloaded, err := c.download(ctx, src.URL)
		if err != nil {
			return nil, &domain.UploadError{Err: err}
		}
		data = downloaded
	}
	if len(data) == 0 {
		return nil, &domain.UploadError{Err: errors.New("image data is empty")}
	}
	filename := uploadFilename(src.Filename)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, &domain.UploadError{Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &domain.UploadError{Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &domain.UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &body)
	if err != nil {
		return nil, &domain.UploadError{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.UploadError{Err: &domain.NetworkError{Op: "upload", Err: err}}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, &domain.UploadError{Err: statusError(resp)}
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.UploadError{Err: &domain.ResponseFormatError{Op: "upload", Err: err}}
	}
	name := strings.TrimSpace(out.Name)
	if name == "" {
		name = filename
	}
	c.logger.Debug().Str("name", name).Int("bytes", len(data)).Msg("image uploaded")
	return &domain.UploadedAsset{RemoteFilename: name}, nil
}

// Submit queues a fresh upscale graph referencing the uploaded image.
func (c *Client) Submit(ctx context.Context, remoteFilename string) (*domain.WorkflowJob, error) {
	payload := map[string]any{"prompt": upscaleWorkflow(c.modelName, remoteFilename)}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, &domain.QueueError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", &buf)
	if err != nil {
		return nil, &domain.QueueError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.QueueError{Err: &domain.NetworkError{Op: "queue", Err: err}}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, &domain.QueueError{Err: statusError(resp)}
	}
	var out struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.QueueError{Err: &domain.ResponseFormatError{Op: "queue", Err: err}}
	}
	if strings.TrimSpace(out.PromptID) == "" {
		return nil, &domain.QueueError{Err: errors.New("response has no prompt_id")}
	}
	c.logger.Info().Str("job_id", out.PromptID).Str("image", remoteFilename).Msg("workflow queued")
	return &domain.WorkflowJob{ID: out.PromptID, SubmittedAt: c.now()}, nil
}

// Poll queries the job history until the output node reports images or the timeout elapses.
// Query failures are logged and retried on the next tick.
func (c *Client) Poll(ctx context.Context, jobID string, timeout time.Duration) ([]domain.OutputImage, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	start := c.now()
	for attempt := 1; c.now().Sub(start) < timeout; attempt++ {
		images, err := c.history(ctx, jobID)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("history query failed")
		case len(images) > 0:
			c.logger.Info().Str("job_id", jobID).Int("attempt", attempt).Msg("workflow completed")
			return images, nil
		default:
			c.logger.Debug().Str("job_id", jobID).Int("attempt", attempt).Msg("workflow pending")
		}
		if err := c.wait(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, &domain.TimeoutError{Timeout: timeout}
}

// Fetch downloads one output image.
func (c *Client) Fetch(ctx context.Context, img domain.OutputImage) ([]byte, error) {
	query := url.Values{}
	query.Set("filename", img.Filename)
	if img.Subfolder != "" {
		query.Set("subfolder", img.Subfolder)
	}
	typ := img.Type
	if typ == "" {
		typ = defaultOutputType
	}
	query.Set("type", typ)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+query.Encode(), nil)
	if err != nil {
		return nil, &domain.FetchError{Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Err: &domain.NetworkError{Op: "view", Err: err}}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, &domain.FetchError{Err: statusError(resp)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Err: &domain.NetworkError{Op: "view", Err: err}}
	}
	return data, nil
}

// Upscale runs upload, submit, poll and fetch in order and returns the first output image.
func (c *Client) Upscale(ctx context.Context, src Source) (*domain.UpscaleResult, error) {
	started := c.now()
	c.logState(domain.JobStateUploading, "")
	asset, err := c.Upload(ctx, src)
	if err != nil {
		return nil, c.stageFailed(domain.StageUpload, "", err)
	}
	job, err := c.Submit(ctx, asset.RemoteFilename)
	if err != nil {
		return nil, c.stageFailed(domain.StageSubmit, "", err)
	}
	c.logState(domain.JobStateQueued, job.ID)
	c.logState(domain.JobStatePolling, job.ID)
	images, err := c.Poll(ctx, job.ID, c.timeout)
	if err != nil {
		return nil, c.stageFailed(domain.StagePoll, job.ID, err)
	}
	data, err := c.Fetch(ctx, images[0])
	if err != nil {
		return nil, c.stageFailed(domain.StageFetch, job.ID, err)
	}
	finished := c.now()
	c.logState(domain.JobStateCompleted, job.ID)
	return &domain.UpscaleResult{
		JobID:     job.ID,
		Output:    images[0],
		Data:      data,
		Elapsed:   finished.Sub(started).Round(time.Millisecond).String(),
		CreatedAt: finished,
	}, nil
}

func (c *Client) logState(state domain.JobState, jobID string) {
	ev := c.logger.Info().Str("state", string(state))
	if jobID != "" {
		ev = ev.Str("job_id", jobID)
	}
	ev.Msg("upscale job state")
}

func (c *Client) stageFailed(stage domain.UpscaleStage, jobID string, err error) error {
	state := domain.JobStateFailed
	var timeout *domain.TimeoutError
	if errors.As(err, &timeout) {
		state = domain.JobStateTimedOut
	}
	c.logger.Warn().Err(err).Str("state", string(state)).Str("stage", string(stage)).Str("job_id", jobID).Msg("upscale job state")
	return &domain.UpscaleError{Stage: stage, Err: err}
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []domain.OutputImage `json:"images"`
	} `json:"outputs"`
}

// history returns the output node images for jobID, or nil while the job is unfinished.
func (c *Client) history(ctx context.Context, jobID string) ([]domain.OutputImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "history", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}
	var out map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.ResponseFormatError{Op: "history", Err: err}
	}
	entry, ok := out[jobID]
	if !ok {
		return nil, nil
	}
	return entry.Outputs[OutputNode].Images, nil
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "download", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: "download", Err: err}
	}
	return data, nil
}

// uploadFilename returns a unique name keeping the hint's extension, jpeg otherwise.
func uploadFilename(hint string) string {
	ext := defaultExtension
	if e := strings.TrimPrefix(path.Ext(strings.TrimSpace(hint)), "."); e != "" {
		ext = strings.ToLower(e)
	}
	id := uuid.New()
	return hex.EncodeToString(id[:]) + "." + ext
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.UpstreamError{Index: -1, Status: resp.StatusCode, Message: msg}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
