package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"loomworks/trawl/pkg/api"
)

// PageFunc fetches one page of records. An empty cursor requests the
// first page.
type PageFunc func(ctx context.Context, cursor string) (api.Page, error)

// BatchSource is a pull-based, finite, non-restartable sequence of
// record batches. Next returns io.EOF when the sequence is exhausted.
// A consumer may simply stop calling Next to abandon iteration; there
// is no background task to cancel.
type BatchSource interface {
	Next(ctx context.Context) ([]api.Record, error)
}

// ErrPageCapExceeded is returned when a pagination run exceeds its
// defensive page cap. The remote contract treats a present cursor with
// zero records as exhaustion, but nothing prevents a misbehaving server
// from handing out tokens forever, so the pager bounds the loop.
var ErrPageCapExceeded = fmt.Errorf("pagination exceeded maximum page count")

// PagerConfig contains tuning for a pagination run.
type PagerConfig struct {
	// ProactiveDelay is the self-imposed delay inserted between pages
	// once the run is past ThrottleAfterRecords.
	// Default: 3 seconds
	ProactiveDelay time.Duration

	// ThrottleAfterRecords is the cumulative record count after which
	// proactive throttling begins.
	// Default: 1000
	ThrottleAfterRecords int

	// MaxPages bounds the number of pages fetched in one run.
	// Default: 10000
	MaxPages int

	// Kind labels metrics emitted by the run.
	Kind string
}

// applyDefaults fills zero-valued fields with defaults.
func (c *PagerConfig) applyDefaults() {
	if c.ProactiveDelay <= 0 {
		c.ProactiveDelay = 3 * time.Second
	}
	if c.ThrottleAfterRecords <= 0 {
		c.ThrottleAfterRecords = 1000
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10000
	}
}

// Pager drives repeated page fetches through a retrier, following the
// server's opaque cursor. At most one page is ever in flight and no
// backlog accumulates: the next page is not requested until the
// consumer pulls it.
type Pager struct {
	fetch   PageFunc
	retrier Retrier
	config  PagerConfig
	metrics Metrics
	logger  *slog.Logger

	// sleep is swapped out by tests to avoid real throttle delays.
	sleep func(ctx context.Context, d time.Duration) error

	cursor  string
	emitted int
	pages   int
	done    bool
}

// NewPager creates a pagination run over fetch. Page calls go through a
// retrier with pagination bounds (4 retries, 2s initial, 120s cap),
// since long-lived runs should tolerate sustained rate-limit pressure.
func NewPager(fetch PageFunc, config PagerConfig) *Pager {
	return NewPagerWithRetrier(fetch, config, NewPaginationRetrier())
}

// NewPagerWithRetrier creates a pagination run with a caller-supplied
// retrier.
func NewPagerWithRetrier(fetch PageFunc, config PagerConfig, retrier Retrier) *Pager {
	config.applyDefaults()
	return &Pager{
		fetch:   fetch,
		retrier: retrier,
		config:  config,
		metrics: retrier.Metrics,
		logger:  slog.Default().With("component", "export.pager"),
		sleep:   sleepContext,
	}
}

// Next returns the next non-empty batch of records, or io.EOF when the
// collection is exhausted. Iteration ends when the server omits the
// cursor or returns an empty page; an empty page ends iteration even if
// a cursor is still present.
func (p *Pager) Next(ctx context.Context) ([]api.Record, error) {
	if p.done {
		return nil, io.EOF
	}

	// Proactive throttling: past the threshold, every page request is
	// preceded by a fixed delay. This caps the steady-state request
	// rate before the server ever has to push back with a 429.
	if p.pages > 0 && p.emitted >= p.config.ThrottleAfterRecords {
		p.logger.Debug("throttling before next page",
			"delay", p.config.ProactiveDelay,
			"emitted", p.emitted,
		)
		if p.metrics != nil {
			p.metrics.ThrottleApplied(p.config.Kind)
		}
		if err := p.sleep(ctx, p.config.ProactiveDelay); err != nil {
			p.done = true
			return nil, err
		}
	}

	if p.pages >= p.config.MaxPages {
		p.done = true
		return nil, fmt.Errorf("%w (%d pages)", ErrPageCapExceeded, p.pages)
	}

	var page api.Page
	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		page, fetchErr = p.fetch(ctx, p.cursor)
		return fetchErr
	})
	if err != nil {
		p.done = true
		return nil, err
	}

	p.pages++
	if p.metrics != nil {
		p.metrics.PageFetched(p.config.Kind)
	}

	// Both signals are required to continue: a present cursor with an
	// empty page still means exhaustion.
	if len(page.Records) == 0 {
		p.done = true
		return nil, io.EOF
	}

	p.emitted += len(page.Records)
	p.cursor = page.Cursor
	if page.Cursor == "" {
		p.done = true
	}

	return page.Records, nil
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
