package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned by [Group.Do] when every entry failed or was
// skipped because its breaker is open.
var ErrAllFailed = errors.New("resilience: all endpoints failed")

// permanentError marks an error that must end a [Group.Do] walk.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that [Group.Do] returns it immediately instead of
// trying the next entry. The failure is not counted against the entry's
// breaker. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type entry[T any] struct {
	value   T
	breaker *CircuitBreaker
}

// Group holds a primary value and zero or more fallbacks of the same type,
// each behind its own [CircuitBreaker]. Entries are tried in the order they
// were added.
type Group[T any] struct {
	cfg     CircuitBreakerConfig
	entries []entry[T]
}

// NewGroup creates an empty [Group]. cfg is the template for every entry's
// breaker; its Name is replaced by the entry name.
func NewGroup[T any](cfg CircuitBreakerConfig) *Group[T] {
	return &Group[T]{cfg: cfg}
}

// Add appends an entry. Add is not safe to call concurrently with [Group.Do].
func (g *Group[T]) Add(name string, v T) {
	cfg := g.cfg
	cfg.Name = name
	g.entries = append(g.entries, entry[T]{value: v, breaker: NewCircuitBreaker(cfg)})
}

// Len returns the number of entries.
func (g *Group[T]) Len() int { return len(g.entries) }

// States returns each entry's breaker state keyed by entry name.
func (g *Group[T]) States() map[string]State {
	out := make(map[string]State, len(g.entries))
	for _, e := range g.entries {
		out[e.breaker.Name()] = e.breaker.State()
	}
	return out
}

// Do calls fn with each entry in order until one returns nil. Entries with an
// open breaker are skipped. The walk stops early when ctx is done or fn
// returns an error wrapped with [Permanent]; the unwrapped error is returned.
// Otherwise the last failure is returned wrapped in [ErrAllFailed].
func (g *Group[T]) Do(ctx context.Context, fn func(name string, v T) error) error {
	if len(g.entries) == 0 {
		return fmt.Errorf("%w: no endpoints", ErrAllFailed)
	}

	var lastErr error
	for i := range g.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := &g.entries[i]
		name := e.breaker.Name()

		if err := e.breaker.admit(); err != nil {
			lastErr = err
			slog.Debug("skipping endpoint, circuit open", "endpoint", name)
			continue
		}

		err := fn(name, e.value)
		var pe *permanentError
		if errors.As(err, &pe) {
			e.breaker.release()
			return pe.err
		}
		if err != nil && ctx.Err() != nil {
			e.breaker.release()
			return ctx.Err()
		}
		e.breaker.record(err)
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(g.entries)-1 {
			slog.Warn("endpoint failed, trying next", "endpoint", name, "err", err)
		}
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
