// Package router selects and streams from an LLM backend based on the
// caller's tier. Pro requests go to the premium chain (premium model first,
// baseline as fallback); free requests use the baseline chain only. Each
// backend sits behind a circuit breaker so a failing provider is skipped
// instead of retried on every request.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nexuslabs/nexus/internal/observe"
	"github.com/nexuslabs/nexus/internal/resilience"
	"github.com/nexuslabs/nexus/pkg/provider/llm"
	"github.com/nexuslabs/nexus/pkg/types"
)

// ErrNoProvider is returned by Stream when no LLM backend is configured for
// the requested tier. Callers use it to switch to the demo responder.
var ErrNoProvider = errors.New("no LLM provider available")

// DefaultMaxOutputTokens caps completion length when the caller does not set
// Options.MaxTokens.
const DefaultMaxOutputTokens = 1500

// Backend couples an LLM provider with its display identity.
type Backend struct {
	// Provider performs the actual completions.
	Provider llm.Provider

	// Model is the short model label carried on streamed tokens,
	// e.g. "llama-3.3-70b".
	Model string

	// Vendor names the hosting service, e.g. "Groq" or "Anthropic".
	Vendor string
}

// Label returns the backend's display name, e.g. "llama-3.3-70b (Groq)".
func (b Backend) Label() string {
	return fmt.Sprintf("%s (%s)", b.Model, b.Vendor)
}

// Options carries the assembled prompt and generation parameters for one
// streaming request.
type Options struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Token is one streamed fragment together with the model that produced it.
// A Token with Err set is terminal: the stream failed after it started and
// no further tokens will arrive.
type Token struct {
	Text  string
	Model string
	Err   error
}

// Router routes completion requests to tier-specific provider chains.
type Router struct {
	free     *resilience.Chain[Backend]
	pro      *resilience.Chain[Backend]
	backends []Backend
	metrics  *observe.Metrics
}

// New builds a Router from the configured backends. free is the baseline
// chain served to everyone; pro backends are tried first for pro-tier
// requests, falling back to the baseline chain. Either slice may be empty.
func New(free, pro []Backend) *Router {
	r := &Router{
		free:    buildChain("llm-free", free),
		pro:     buildChain("llm-pro", append(append([]Backend{}, pro...), free...)),
		metrics: observe.DefaultMetrics(),
	}
	r.backends = append(r.backends, free...)
	r.backends = append(r.backends, pro...)
	return r
}

func buildChain(name string, backends []Backend) *resilience.Chain[Backend] {
	entries := make([]resilience.Entry[Backend], 0, len(backends))
	for _, b := range backends {
		entries = append(entries, resilience.Entry[Backend]{Name: b.Label(), Backend: b})
	}
	return resilience.NewChain(name, entries...)
}

func (r *Router) chainFor(tier types.Tier) *resilience.Chain[Backend] {
	if tier == types.TierPro {
		return r.pro
	}
	return r.free
}

// Stream sends the prompt to the first healthy backend in the tier's chain
// and returns a channel of incremental tokens. Failures to open the stream
// fall through to the next backend; failures after the stream started are
// delivered as a terminal Token with Err set. The channel is closed when
// generation ends or ctx is cancelled.
//
// Returns ErrNoProvider when the tier has no configured backends, and the
// chain's error when every backend refused the request.
func (r *Router) Stream(ctx context.Context, opts Options, tier types.Tier) (<-chan Token, error) {
	chain := r.chainFor(tier)
	if chain.Len() == 0 {
		return nil, ErrNoProvider
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	req := llm.CompletionRequest{
		Messages:     []types.Message{{Role: "user", Content: opts.User}},
		SystemPrompt: opts.System,
		MaxTokens:    maxTokens,
		Temperature:  opts.Temperature,
	}

	type stream struct {
		chunks <-chan llm.Chunk
		model  string
	}
	opened := time.Now()
	started, label, err := resilience.TryWithResult(ctx, chain, func(ctx context.Context, b Backend) (stream, error) {
		ch, err := b.Provider.StreamCompletion(ctx, req)
		if err != nil {
			r.metrics.RecordProviderRequest(ctx, b.Label(), "error")
			return stream{}, err
		}
		r.metrics.RecordProviderRequest(ctx, b.Label(), "ok")
		return stream{chunks: ch, model: b.Model}, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("router: stream opened", "tier", tier, "backend", label)

	out := make(chan Token)
	go func() {
		defer close(out)
		first := true
		defer func() {
			r.metrics.LLMDuration.Record(ctx, time.Since(opened).Seconds(),
				metric.WithAttributes(attribute.String("provider", label)))
		}()
		for chunk := range started.chunks {
			tok := Token{Text: chunk.Text, Model: started.model}
			if chunk.FinishReason == "error" {
				msg := chunk.Text
				if msg == "" {
					msg = "stream failed"
				}
				tok = Token{Model: started.model, Err: fmt.Errorf("router: %s: %s", label, msg)}
				r.metrics.RecordProviderError(ctx, label)
			}
			if tok.Text == "" && tok.Err == nil {
				continue
			}
			if first && tok.Err == nil {
				first = false
				r.metrics.LLMFirstTokenDuration.Record(ctx, time.Since(opened).Seconds(),
					metric.WithAttributes(attribute.String("provider", label)))
			}
			select {
			case out <- tok:
			case <-ctx.Done():
				return
			}
			if tok.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// Available lists the configured backends by display label, baseline first.
func (r *Router) Available() []string {
	labels := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		labels = append(labels, b.Label())
	}
	return labels
}

// Configured reports whether at least one backend exists in any chain.
func (r *Router) Configured() bool {
	return len(r.backends) > 0
}

// Healthy reports whether at least one configured backend's breaker would
// admit a request. A router with no backends is not healthy.
func (r *Router) Healthy() bool {
	if r.free.Len() > 0 && r.free.Healthy() {
		return true
	}
	return r.pro.Len() > 0 && r.pro.Healthy()
}
