package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotConfigured  = errors.New("service not configured")
	ErrInvalidRequest = errors.New("invalid request")
)

// NetworkError reports a transport-level failure (dial, TLS, timeout) talking to a remote service.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseFormatError reports a response whose JSON shape is not what the contract promises.
type ResponseFormatError struct {
	Op  string
	Err error
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("%s: response format error: %v", e.Op, e.Err)
}

func (e *ResponseFormatError) Unwrap() error { return e.Err }

// UpstreamError reports a logical failure signalled by the remote service. Index is the
// zero-based call index for multi-call operations and -1 otherwise.
type UpstreamError struct {
	Index   int
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Index >= 0 && e.Code != 0:
		return fmt.Sprintf("image %d generation failed: %s (code=%d)", e.Index+1, msg, e.Code)
	case e.Index >= 0:
		return fmt.Sprintf("image %d generation failed: %s", e.Index+1, msg)
	case e.Status != 0:
		return fmt.Sprintf("upstream error: %s (http %d)", msg, e.Status)
	default:
		return "upstream error: " + msg
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UploadError reports a failure sending source bytes to the workflow engine.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload image: %v", e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

// QueueError reports a rejected workflow graph or a queue response without a job id.
type QueueError struct {
	Err error
}

func (e *QueueError) Error() string { return fmt.Sprintf("queue workflow: %v", e.Err) }

func (e *QueueError) Unwrap() error { return e.Err }

// TimeoutError reports that polling ended without observing a terminal success.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workflow timeout after %d seconds", int(e.Timeout/time.Second))
}

// FetchError reports a failure downloading a workflow output image.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch output image: %v", e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// UpscaleStage names a step of the upload -> submit -> poll -> fetch pipeline.
type UpscaleStage string

const (
	StageUpload UpscaleStage = "upload"
	StageSubmit UpscaleStage = "submit"
	StagePoll   UpscaleStage = "poll"
	StageFetch  UpscaleStage = "fetch"
)

// UpscaleError wraps the failure of one pipeline stage.
type UpscaleError struct {
	Stage UpscaleStage
	Err   error
}

func (e *UpscaleError) Error() string {
	return fmt.Sprintf("upscale failed at %s: %v", e.Stage, e.Err)
}

func (e *UpscaleError) Unwrap() error { return e.Err }
