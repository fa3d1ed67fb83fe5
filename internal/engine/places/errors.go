package places

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformed wraps responses that could not be decoded.
var ErrMalformed = errors.New("malformed response")

// StatusError is a non-OK status reported in a response body.
type StatusError struct {
	Endpoint string
	Status   string
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Status)
}

// Quota reports billing, quota and credential rejections.
func (e *StatusError) Quota() bool {
	return e.Status == StatusOverQueryLimit || e.Status == StatusRequestDenied
}

// HTTPError is a non-200 HTTP response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
}

// retryable reports whether a call may succeed if repeated after a backoff.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == StatusUnknownError
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return false
}

// IsStatus reports whether err carries the given response status.
func IsStatus(err error, status string) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
