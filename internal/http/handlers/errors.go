package handlers

import (
	"context"
	"errors"
	"net/http"

	"postergen/internal/domain"
)

// statusFor maps the domain error taxonomy onto an HTTP status and a short error kind.
func statusFor(err error) (int, string) {
	var (
		timeout  *domain.TimeoutError
		upstream *domain.UpstreamError
		network  *domain.NetworkError
		format   *domain.ResponseFormatError
		upload   *domain.UploadError
		queue    *domain.QueueError
		fetch    *domain.FetchError
	)
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &upstream), errors.As(err, &network), errors.As(err, &format),
		errors.As(err, &upload), errors.As(err, &queue), errors.As(err, &fetch):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
