package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// RequestError represents a failed API request. It carries the HTTP
// status and response headers when the server responded, or the
// underlying transport error when it did not, so callers can classify
// retryability without re-parsing anything.
type RequestError struct {
	// StatusCode is the HTTP status code (0 for transport failures).
	StatusCode int

	// Header holds the response headers (nil for transport failures).
	Header http.Header

	// Message is the error message, typically the response body.
	Message string

	// Err is the underlying transport error (if any).
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api request failed (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("api request failed: %v", e.Err)
	}
	return fmt.Sprintf("api request failed: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a request timeout.
func (e *RequestError) Timeout() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ConnectionReset reports whether the failure was a connection reset by
// the peer.
func (e *RequestError) ConnectionReset() bool {
	return e.Err != nil && errors.Is(e.Err, syscall.ECONNRESET)
}

// RetryAfter returns the server's Retry-After hint as a duration, or
// zero when the header is absent or malformed. Delay-seconds values may
// be fractional and are rounded up to the next millisecond; HTTP-date
// values are converted to a delay from now. A malformed header is
// ignored silently so callers fall back to computed backoff.
func (e *RequestError) RetryAfter() time.Duration {
	if e.Header == nil {
		return 0
	}
	header := e.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.ParseFloat(header, 64); err == nil {
		if math.IsInf(seconds, 0) || math.IsNaN(seconds) || seconds <= 0 {
			return 0
		}
		ms := math.Ceil(seconds * 1000)
		return time.Duration(ms) * time.Millisecond
	}

	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}

// DecodeError represents a response whose shape could not be normalized
// into the canonical page or collection form. Decode failures are never
// retried.
type DecodeError struct {
	// Path is the request path that produced the response.
	Path string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("api response decode error for %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}
