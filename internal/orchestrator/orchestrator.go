// Package orchestrator sequences one chat request end to end: intent
// classification, concurrent tool and memory fetch, prompt assembly, LLM
// streaming (or the deterministic demo responder when no provider is
// configured), and fire-and-forget memory persistence. The result is a typed
// event stream delivered over a channel.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/nexuslabs/nexus/internal/intent"
	"github.com/nexuslabs/nexus/internal/observe"
	"github.com/nexuslabs/nexus/internal/prompt"
	"github.com/nexuslabs/nexus/internal/router"
	"github.com/nexuslabs/nexus/internal/tool"
	"github.com/nexuslabs/nexus/pkg/memory"
	"github.com/nexuslabs/nexus/pkg/types"
)

// errorMessage is the user-facing content of a terminal error event.
// Provider details stay in the logs.
const errorMessage = "Failed to generate response. Please try again."

// demoTokenDelay paces token emission on the demo path so clients see the
// same incremental behavior as a real model stream.
const demoTokenDelay = 20 * time.Millisecond

// Request is the per-call input to Orchestrate. It is owned by a single
// in-flight orchestration and never shared.
type Request struct {
	Message string
	UserID  string
	Mode    types.Mode
	Tier    types.Tier
}

// Orchestrator wires the pipeline stages together. LongTerm may be nil when
// no long-term store is configured; that disables fact retrieval and
// persistence but not the rest of the pipeline.
type Orchestrator struct {
	router     *router.Router
	dispatcher *tool.Dispatcher
	shortTerm  memory.ShortTermStore
	longTerm   memory.LongTermStore

	temperature float64
	tokenDelay  time.Duration
	metrics     *observe.Metrics

	persisting sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTemperature overrides the sampling temperature sent to the router.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithDemoTokenDelay overrides the inter-token delay on the demo path.
// Tests use this to avoid real sleeps.
func WithDemoTokenDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.tokenDelay = d }
}

// New creates an Orchestrator over the given collaborators.
func New(r *router.Router, d *tool.Dispatcher, shortTerm memory.ShortTermStore, longTerm memory.LongTermStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:      r,
		dispatcher:  d,
		shortTerm:   shortTerm,
		longTerm:    longTerm,
		temperature: 0.7,
		tokenDelay:  demoTokenDelay,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Orchestrate runs the pipeline for one request and returns the event
// stream. The channel emits zero or more tool_result events, then zero or
// more token events in generation order, then exactly one terminal done or
// error event, and is closed. Cancelling ctx stops the stream; persistence
// already in flight is allowed to finish.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) <-chan types.ChatEvent {
	events := make(chan types.ChatEvent)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- types.ChatEvent) {
	start := time.Now()
	o.metrics.ActiveRequests.Add(ctx, 1)
	defer o.metrics.ActiveRequests.Add(ctx, -1)
	defer func() {
		o.metrics.RequestDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("tier", string(req.Tier))))
	}()

	mode := req.Mode
	if !mode.IsValid() {
		mode = types.ModeAnalyst
	}

	in := intent.Classify(req.Message)
	slog.Info("orchestrator: intent classified",
		"user_id", req.UserID, "hints", in.Hints, "complexity", in.Complexity, "needs_realtime", in.NeedsRealtime)

	toolResults, mem := o.fetch(ctx, req, in)

	for _, result := range toolResults {
		if !emit(ctx, events, types.ChatEvent{Type: types.EventToolResult, Tool: result.Source, Data: result.Data}) {
			return
		}
	}

	var reply string
	var ok bool
	if o.router.Configured() {
		reply, ok = o.generate(ctx, req, mode, mem, toolResults, events)
	} else {
		reply, ok = o.demo(ctx, req, mode, toolResults, events)
	}
	if !ok {
		return
	}

	o.persist(req, reply)

	slog.Info("orchestrator: request completed",
		"user_id", req.UserID, "total_latency_ms", time.Since(start).Milliseconds(), "tools_used", len(toolResults))
	emit(ctx, events, types.ChatEvent{Type: types.EventDone})
}

// fetch runs tool dispatch and both memory reads concurrently. Every branch
// is fail-soft: a failed memory read yields an empty string and dispatch
// already drops failed tools internally.
func (o *Orchestrator) fetch(ctx context.Context, req Request, in intent.Intent) ([]types.ToolResult, prompt.MemoryContext) {
	var (
		toolResults []types.ToolResult
		mem         prompt.MemoryContext
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if in.NeedsTools {
			toolResults = o.dispatcher.Dispatch(gctx, in.Hints, req.Message)
		}
		return nil
	})
	g.Go(func() error {
		recent, err := o.shortTerm.Recent(gctx, req.UserID)
		if err != nil {
			slog.Warn("orchestrator: short-term memory read failed", "user_id", req.UserID, "err", err)
			return nil
		}
		mem.ShortTerm = recent
		return nil
	})
	g.Go(func() error {
		if o.longTerm == nil {
			return nil
		}
		facts, err := o.longTerm.Query(gctx, req.UserID, req.Message)
		if err != nil {
			slog.Warn("orchestrator: long-term memory query failed", "user_id", req.UserID, "err", err)
			return nil
		}
		mem.LongTerm = facts
		return nil
	})
	_ = g.Wait()

	return toolResults, mem
}

// generate builds the prompt and streams the model's reply. It returns the
// accumulated reply text and whether the caller should proceed to the
// terminal done event.
func (o *Orchestrator) generate(ctx context.Context, req Request, mode types.Mode, mem prompt.MemoryContext, toolResults []types.ToolResult, events chan<- types.ChatEvent) (string, bool) {
	p := prompt.Build(req.Message, mode, mem, toolResults)

	tokens, err := o.router.Stream(ctx, router.Options{
		System:      p.System,
		User:        p.User,
		Temperature: o.temperature,
	}, req.Tier)
	if err != nil {
		slog.Error("orchestrator: LLM stream failed to start", "user_id", req.UserID, "err", err)
		emit(ctx, events, types.ChatEvent{Type: types.EventError, Content: errorMessage})
		return "", false
	}

	var reply strings.Builder
	for tok := range tokens {
		if tok.Err != nil {
			slog.Error("orchestrator: LLM streaming failed", "user_id", req.UserID, "err", tok.Err)
			emit(ctx, events, types.ChatEvent{Type: types.EventError, Content: errorMessage})
			return "", false
		}
		reply.WriteString(tok.Text)
		if !emit(ctx, events, types.ChatEvent{Type: types.EventToken, Content: tok.Text, Model: tok.Model}) {
			return "", false
		}
		o.metrics.RecordTokens(ctx, tok.Model, 1)
	}
	if err := ctx.Err(); err != nil {
		return "", false
	}
	return reply.String(), true
}

// demo emits the deterministic demo-mode reply as paced whitespace tokens,
// preserving the streaming contract without a model.
func (o *Orchestrator) demo(ctx context.Context, req Request, mode types.Mode, toolResults []types.ToolResult, events chan<- types.ChatEvent) (string, bool) {
	reply := demoResponse(req.Message, toolResults, mode)

	words := strings.Fields(reply)
	for i, word := range words {
		text := word
		if i < len(words)-1 {
			text += " "
		}
		if !emit(ctx, events, types.ChatEvent{Type: types.EventToken, Content: text, Model: "demo"}) {
			return "", false
		}
		o.metrics.RecordTokens(ctx, "demo", 1)
		if o.tokenDelay > 0 {
			select {
			case <-time.After(o.tokenDelay):
			case <-ctx.Done():
				return "", false
			}
		}
	}
	return reply, true
}

// persist saves the completed exchange in the background. Failures are
// logged only; the terminal event is never blocked on storage.
func (o *Orchestrator) persist(req Request, reply string) {
	shortTerm, longTerm := o.shortTerm, o.longTerm
	o.persisting.Add(1)
	go func() {
		defer o.persisting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, turn := range []struct{ role, content string }{
			{"user", req.Message},
			{"assistant", reply},
		} {
			if err := shortTerm.Append(ctx, req.UserID, turn.role, turn.content); err != nil {
				slog.Error("orchestrator: memory save failed", "user_id", req.UserID, "err", err)
				o.metrics.RecordMemoryOp(ctx, "append", "error")
				continue
			}
			o.metrics.RecordMemoryOp(ctx, "append", "ok")
		}

		if longTerm == nil {
			return
		}
		decision := memory.ShouldPersist(req.Message)
		if !decision.Should {
			return
		}
		if err := longTerm.Save(ctx, req.UserID, req.Message, decision.Type, decision.Importance); err != nil {
			slog.Error("orchestrator: long-term memory save failed", "user_id", req.UserID, "err", err)
			o.metrics.RecordMemoryOp(ctx, "save", "error")
			return
		}
		o.metrics.RecordMemoryOp(ctx, "save", "ok")
	}()
}

// Wait blocks until all background persistence goroutines have finished.
// Called during graceful shutdown so in-flight memory writes complete.
func (o *Orchestrator) Wait() {
	o.persisting.Wait()
}

// emit sends one event unless the request was cancelled. It reports whether
// the caller should keep going.
func emit(ctx context.Context, events chan<- types.ChatEvent, ev types.ChatEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
