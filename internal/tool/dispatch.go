package tool

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nexuslabs/nexus/internal/intent"
	"github.com/nexuslabs/nexus/internal/observe"
	"github.com/nexuslabs/nexus/pkg/types"
)

// Secondary keyword triggers, checked against the raw query independently of
// the hint system. They only ever add tools to a dispatch, never remove one:
// a recall safety net for vocabulary the hint patterns don't own.
var keywordTriggers = []struct {
	pattern *regexp.Regexp
	toolID  string
}{
	{regexp.MustCompile(`\b(gas|gwei|fee|transaction cost)\b`), "gas_tracker"},
	{regexp.MustCompile(`\b(whale|large transaction|big transfer)\b`), "whale_tracker"},
	{regexp.MustCompile(`\b(on.?chain|hashrate|difficulty|block height|supply)\b`), "onchain_data"},
}

// Dispatcher executes the tools relevant to one query. It is safe for
// concurrent use; all per-dispatch state is local.
type Dispatcher struct {
	registry *Registry
	cache    *resultCache
	metrics  *observe.Metrics
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cache:    newResultCache(),
		metrics:  observe.DefaultMetrics(),
	}
}

// Dispatch resolves tools from the hints (plus keyword triggers from the
// query), executes them concurrently, and returns the successful results in
// completion order. Callers must not depend on result order beyond "all
// successes present".
//
// Each tool races its own timeout; a timeout or fetch error drops that tool
// from the results and is logged, never surfaced. An empty resolved set
// returns an empty slice with no network calls.
func (d *Dispatcher) Dispatch(ctx context.Context, hints []intent.Hint, query string) []types.ToolResult {
	configs := d.registry.Resolve(hints)
	if len(configs) == 0 {
		return []types.ToolResult{}
	}

	configs = d.applyTriggers(configs, query)

	start := time.Now()
	results := make(chan types.ToolResult, len(configs))

	var wg sync.WaitGroup
	for _, cfg := range configs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.executeOne(ctx, cfg, query)
			if err != nil {
				slog.Warn("tool dispatch: tool failed", "tool", cfg.ID, "err", err)
				d.metrics.RecordToolCall(ctx, cfg.ID, "error")
				return
			}
			d.metrics.RecordToolCall(ctx, cfg.ID, "ok")
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	successful := make([]types.ToolResult, 0, len(configs))
	succeeded := make([]string, 0, len(configs))
	for res := range results {
		successful = append(successful, res)
		succeeded = append(succeeded, res.Source)
	}

	slog.Info("tool dispatch: completed",
		"requested", len(configs),
		"succeeded", succeeded,
		"total_latency_ms", time.Since(start).Milliseconds(),
	)
	return successful
}

// applyTriggers appends keyword-triggered tools not already resolved.
func (d *Dispatcher) applyTriggers(configs []Config, query string) []Config {
	lower := strings.ToLower(query)
	for _, trigger := range keywordTriggers {
		if !trigger.pattern.MatchString(lower) {
			continue
		}
		if containsTool(configs, trigger.toolID) {
			continue
		}
		if cfg, ok := d.registry.Get(trigger.toolID); ok {
			configs = append(configs, cfg)
		}
	}
	return configs
}

// executeOne runs a single tool against its timeout, consulting the advisory
// cache first.
func (d *Dispatcher) executeOne(ctx context.Context, cfg Config, query string) (types.ToolResult, error) {
	if cached, ok := d.cache.get(cfg.ID); ok {
		cached.Cached = true
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	start := time.Now()
	data, err := cfg.Execute(ctx, Params{Query: query})
	if err != nil {
		return types.ToolResult{}, err
	}

	d.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("tool", cfg.ID)))

	res := types.ToolResult{
		Data:      data,
		Source:    cfg.Source,
		Timestamp: time.Now().UnixMilli(),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if cfg.CacheTTL > 0 {
		d.cache.put(cfg.ID, res, cfg.CacheTTL)
	}
	return res, nil
}

func containsTool(configs []Config, id string) bool {
	for _, cfg := range configs {
		if cfg.ID == id {
			return true
		}
	}
	return false
}
