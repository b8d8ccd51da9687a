package export

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"loomworks/trawl/pkg/api"
)

// waitNoticeInterval is how often the retrier reports progress while
// waiting out a long delay, so interactive sessions do not appear hung.
const waitNoticeInterval = 10 * time.Second

// WaitReporter receives notices while the retrier sits out a long
// backoff delay. Implementations must be cheap; they are called from
// the export's single flow of control.
type WaitReporter interface {
	// Waiting reports that the retrier will keep waiting for
	// approximately remaining before re-attempting.
	Waiting(remaining time.Duration, attempt int)
}

// Retrier wraps one remote call, classifies failures, and re-invokes
// the call with backoff until it succeeds, fails permanently, or the
// attempt budget runs out.
type Retrier struct {
	// MaxRetries is the number of re-attempts after the first call.
	MaxRetries int

	// Backoff is the delay policy between attempts.
	Backoff Backoff

	// Reporter receives long-wait notices. Nil disables them.
	Reporter WaitReporter

	// Metrics receives retry counts. Nil disables them.
	Metrics Metrics

	logger *slog.Logger
}

// NewRetrier returns a retrier with the default budget: 5 retries,
// 500ms initial delay, 30s cap.
func NewRetrier() Retrier {
	return Retrier{
		MaxRetries: 5,
		Backoff: Backoff{
			Initial: 500 * time.Millisecond,
			Max:     30 * time.Second,
		},
	}
}

// NewPaginationRetrier returns a retrier tuned for long-lived
// pagination runs: fewer attempts but far wider delay bounds, so a
// sustained rate-limit window is waited out rather than escalated.
func NewPaginationRetrier() Retrier {
	return Retrier{
		MaxRetries: 4,
		Backoff: Backoff{
			Initial: 2 * time.Second,
			Max:     120 * time.Second,
		},
	}
}

// Do invokes call until it succeeds or retries are exhausted. Transient
// failures (HTTP 429, 5xx, timeouts, connection resets) are retried
// with backoff; a 429 carrying a valid Retry-After hint waits exactly
// that long instead. Permanent failures and the final exhausted error
// propagate unchanged.
func (r Retrier) Do(ctx context.Context, call func(ctx context.Context) error) error {
	logger := r.logger
	if logger == nil {
		logger = slog.Default().With("component", "export.retry")
	}

	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) || attempt == r.MaxRetries {
			return lastErr
		}

		delay := r.delayFor(lastErr, attempt)
		logger.Warn("transient failure, will retry",
			"attempt", attempt+1,
			"max_retries", r.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)
		if r.Metrics != nil {
			r.Metrics.RetryScheduled()
		}

		if err := r.wait(ctx, delay, attempt); err != nil {
			return err
		}
	}

	return lastErr
}

// delayFor picks the wait before the next attempt. A 429 with a usable
// Retry-After hint overrides the computed backoff.
func (r Retrier) delayFor(err error, attempt int) time.Duration {
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusTooManyRequests {
		if hint := reqErr.RetryAfter(); hint > 0 {
			return hint
		}
	}
	return r.Backoff.Delay(attempt)
}

// wait suspends for delay, emitting periodic notices for long waits and
// honoring context cancellation.
func (r Retrier) wait(ctx context.Context, delay time.Duration, attempt int) error {
	if delay < waitNoticeInterval || r.Reporter == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			return nil
		}
	}

	deadline := time.Now().Add(delay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		r.Reporter.Waiting(remaining, attempt)

		step := remaining
		if step > waitNoticeInterval {
			step = waitNoticeInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
}

// IsRetryable reports whether err is a transient remote failure: HTTP
// 429, any 5xx, a request timeout, or a connection reset. Everything
// else (other 4xx, decode failures, local errors) is permanent.
func IsRetryable(err error) bool {
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}

	if reqErr.StatusCode == http.StatusTooManyRequests || reqErr.StatusCode >= 500 {
		return true
	}
	return reqErr.Timeout() || reqErr.ConnectionReset()
}
