// Package tool owns the set of external data-fetch adapters available to the
// orchestration pipeline and executes the subset relevant to one query.
//
// A [Config] describes one adapter: a stable id, display metadata, a per-call
// timeout, an advisory cache TTL, and the execute function that performs the
// actual fetch. Configs live in a [Registry] whose contents can change at
// runtime through plugin registration; dispatches always observe a consistent
// snapshot of the registry.
//
// Execution is handled by [Dispatcher.Dispatch]: all selected tools run
// concurrently, each racing its own timeout, and one tool's failure never
// fails or delays the others.
package tool

import (
	"context"
	"time"
)

// Default execution budgets, matching the public APIs the built-in tools talk
// to. Web search gets a longer leash than the structured data endpoints.
const (
	DefaultTimeout = 5 * time.Second
	SearchTimeout  = 8 * time.Second
)

// Params carries the inputs of a single tool invocation.
type Params struct {
	// Query is the user's raw message text. Tools derive everything they
	// need from it (symbols, protocol names, search terms).
	Query string

	// Extras holds optional caller-supplied values forwarded verbatim to
	// plugin endpoints. Built-in tools ignore it.
	Extras map[string]any
}

// ExecuteFunc performs one data fetch. The returned value is the tool's
// opaque payload, later wrapped into a [types.ToolResult] by the dispatcher.
// Implementations must respect ctx for cancellation and deadlines.
type ExecuteFunc func(ctx context.Context, params Params) (any, error)

// Config is the capability descriptor for one tool. Configs are immutable
// after registration.
type Config struct {
	// ID uniquely identifies the tool within a [Registry].
	ID string

	// Name is the human-readable display name.
	Name string

	// Description explains what data the tool provides.
	Description string

	// Source labels the tool's results (e.g. "CoinGecko") in events and
	// prompt blocks.
	Source string

	// Timeout bounds a single execution. Zero means [DefaultTimeout].
	Timeout time.Duration

	// CacheTTL is the advisory freshness window for results. Zero disables
	// caching for this tool.
	CacheTTL time.Duration

	// Execute performs the fetch.
	Execute ExecuteFunc
}

// timeout returns the effective execution budget.
func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
