package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConnectionFault  = errors.New("connection fault")
	ErrServerFault      = errors.New("discord server error")
	ErrExhaustedRetries = errors.New("request retries exhausted")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrClientError      = errors.New("request rejected")
	ErrBlocked          = errors.New("blocked by edge rate limit")
	ErrLoginFailure     = errors.New("improper token has been passed")
	ErrInvalidConfig    = errors.New("invalid client configuration")
	ErrInvalidFile      = errors.New("attachment cannot be read")
)

// HTTPError is a failed request together with the response that caused it.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   []byte
	kind   error
}

// Error implements error.
func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %v (status %d %s)",
		e.Method, e.URL, e.kind, e.Status, http.StatusText(e.Status))

	if len(e.Body) > 0 {
		body := e.Body
		if len(body) > 200 {
			body = body[:200]
		}
		msg += ": " + string(body)
	}
	return msg
}

// Unwrap returns the sentinel for the error kind so callers can use errors.Is.
func (e *HTTPError) Unwrap() error {
	return e.kind
}

// kindForStatus maps a non-retryable status to its sentinel.
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServerFault
	default:
		return ErrClientError
	}
}
