package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Chain] either failed or
// had its circuit breaker open.
var ErrAllFailed = errors.New("all chain entries failed")

// Entry is one named backend in a [Chain].
type Entry[T any] struct {
	// Name identifies the backend in logs and in Try results.
	Name string

	// Backend is the value handed to the call function.
	Backend T

	// Breaker tunes the per-entry circuit breaker. Name defaults to the
	// entry name; zero-value knobs use the breaker defaults.
	Breaker BreakerConfig
}

type chainEntry[T any] struct {
	name    string
	backend T
	breaker *CircuitBreaker
}

// Chain tries a list of backends in priority order until one succeeds.
// Each backend sits behind its own [CircuitBreaker], so a backend that has
// been failing is skipped without waiting for it to time out again.
type Chain[T any] struct {
	name    string
	entries []chainEntry[T]
}

// NewChain builds a chain from entries in priority order. The chain name
// labels log messages.
func NewChain[T any](name string, entries ...Entry[T]) *Chain[T] {
	c := &Chain[T]{name: name}
	for _, e := range entries {
		cfg := e.Breaker
		if cfg.Name == "" {
			cfg.Name = e.Name
		}
		c.entries = append(c.entries, chainEntry[T]{
			name:    e.Name,
			backend: e.Backend,
			breaker: NewCircuitBreaker(cfg),
		})
	}
	return c
}

// Len returns the number of entries in the chain.
func (c *Chain[T]) Len() int {
	return len(c.entries)
}

// Names returns the entry names in priority order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Healthy reports whether at least one entry's breaker would admit a call.
func (c *Chain[T]) Healthy() bool {
	for _, e := range c.entries {
		if e.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Try runs fn against each backend in order and returns the name of the
// entry that succeeded. Entries with an open breaker are skipped. If every
// entry fails, the error wraps [ErrAllFailed] together with the last
// backend error.
func (c *Chain[T]) Try(ctx context.Context, fn func(ctx context.Context, backend T) error) (string, error) {
	_, name, err := TryWithResult(ctx, c, func(ctx context.Context, backend T) (struct{}, error) {
		return struct{}{}, fn(ctx, backend)
	})
	return name, err
}

// TryWithResult is like [Chain.Try] for call functions that produce a value.
// It returns the value together with the name of the entry that produced it.
func TryWithResult[T, R any](ctx context.Context, c *Chain[T], fn func(ctx context.Context, backend T) (R, error)) (R, string, error) {
	var zero R
	var lastErr error

	for _, e := range c.entries {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		var result R
		err := e.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(ctx, e.backend)
			return callErr
		})
		if err == nil {
			return result, e.name, nil
		}

		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("chain: skipping entry with open breaker", "chain", c.name, "entry", e.name)
		} else {
			slog.Warn("chain: entry failed, trying next", "chain", c.name, "entry", e.name, "error", err)
			lastErr = err
		}
	}

	if lastErr == nil {
		lastErr = ErrCircuitOpen
	}
	return zero, "", fmt.Errorf("chain %s: %w: %w", c.name, ErrAllFailed, lastErr)
}
