package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default reconnection parameters.
const (
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ErrRetriesExhausted is returned by [Reconnector.Stream] once MaxRetries
// consecutive attempts have failed.
var ErrRetriesExhausted = errors.New("feed: reconnect retries exhausted")

// ReconnectConfig configures a [Reconnector].
type ReconnectConfig struct {
	// MaxRetries is the number of consecutive failed attempts tolerated after
	// the first one. Zero retries forever.
	MaxRetries int

	// Backoff is the wait after the first failure. It doubles on every
	// further failure up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the wait. Defaults to 30s if zero.
	MaxBackoff time.Duration
}

// Reconnector re-runs a [Source] that fails, with exponential backoff. A
// stream that delivered at least one event resets the backoff and the retry
// budget. A clean end of stream is passed through and not retried.
type Reconnector struct {
	src        Source
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewReconnector wraps src.
func NewReconnector(src Source, cfg ReconnectConfig) *Reconnector {
	r := &Reconnector{
		src:        src,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
	}
	if r.backoff <= 0 {
		r.backoff = defaultBackoff
	}
	if r.maxBackoff <= 0 {
		r.maxBackoff = defaultMaxBackoff
	}
	if r.maxBackoff < r.backoff {
		r.maxBackoff = r.backoff
	}
	return r
}

// Stream implements [Source].
func (r *Reconnector) Stream(ctx context.Context, emit func(Event) error) error {
	failures := 0
	wait := r.backoff

	for {
		delivered := false
		err := r.src.Stream(ctx, func(ev Event) error {
			delivered = true
			return emit(ev)
		})
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if delivered {
			failures = 0
			wait = r.backoff
		}
		failures++
		if r.maxRetries > 0 && failures > r.maxRetries {
			slog.Error("feed: giving up after repeated failures", "attempts", failures, "err", err)
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}

		slog.Warn("feed: stream failed, reconnecting",
			"attempt", failures,
			"max_retries", r.maxRetries,
			"backoff", wait,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > r.maxBackoff {
			wait = r.maxBackoff
		}
	}
}

var _ Source = (*Reconnector)(nil)
