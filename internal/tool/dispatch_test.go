package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexuslabs/nexus/internal/intent"
	"github.com/nexuslabs/nexus/pkg/types"
)

func typesResult(source string) types.ToolResult {
	return types.ToolResult{Source: source, Timestamp: time.Now().UnixMilli()}
}

func TestDispatchEmptyHintsNoCalls(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r := NewRegistry()
	r.Register(Config{
		ID:     "market_price",
		Source: "CoinGecko",
		Execute: func(ctx context.Context, params Params) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	})

	d := NewDispatcher(r)
	results := d.Dispatch(t.Context(), nil, "hello")
	if len(results) != 0 {
		t.Fatalf("Dispatch() = %d results, want 0", len(results))
	}
	if calls.Load() != 0 {
		t.Fatalf("execute called %d times, want 0", calls.Load())
	}
}

func TestDispatchTimeoutIsolation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(Config{
		ID:      "market_price",
		Source:  "CoinGecko",
		Timeout: 50 * time.Millisecond,
		Execute: func(ctx context.Context, params Params) (any, error) {
			// Waits out its timeout.
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	r.Register(Config{
		ID:     "fear_greed",
		Source: "Alternative.me Fear & Greed Index",
		Execute: func(ctx context.Context, params Params) (any, error) {
			return map[string]any{"value": 42}, nil
		},
	})

	d := NewDispatcher(r)
	results := d.Dispatch(t.Context(), []intent.Hint{intent.HintAnalysis}, "btc analysis")
	if len(results) != 1 {
		t.Fatalf("Dispatch() = %d results, want exactly the successful one", len(results))
	}
	if results[0].Source != "Alternative.me Fear & Greed Index" {
		t.Fatalf("Source = %q, want the sentiment tool", results[0].Source)
	}
}

func TestDispatchFailedToolDropped(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(Config{
		ID:     "crypto_news",
		Source: "CryptoCompare",
		Execute: func(ctx context.Context, params Params) (any, error) {
			return nil, errors.New("upstream 503")
		},
	})

	d := NewDispatcher(r)
	results := d.Dispatch(t.Context(), []intent.Hint{intent.HintNews}, "latest news")
	if len(results) != 0 {
		t.Fatalf("Dispatch() = %d results, want 0 (failure dropped, not surfaced)", len(results))
	}
}

func TestDispatchKeywordTriggers(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(Config{
		ID:     "market_price",
		Source: "CoinGecko",
		Execute: func(ctx context.Context, params Params) (any, error) {
			return map[string]any{}, nil
		},
	})
	r.Register(Config{
		ID:     "gas_tracker",
		Source: "Etherscan Gas Tracker",
		Execute: func(ctx context.Context, params Params) (any, error) {
			return map[string]any{"average": 20}, nil
		},
	})

	d := NewDispatcher(r)
	results := d.Dispatch(t.Context(), []intent.Hint{intent.HintPrice}, "eth price and gas fees")

	sources := make(map[string]bool)
	for _, res := range results {
		sources[res.Source] = true
	}
	if !sources["Etherscan Gas Tracker"] {
		t.Fatalf("results = %v, gas keyword should force the gas tool in", sources)
	}
	if !sources["CoinGecko"] {
		t.Fatalf("results = %v, triggers must never remove resolved tools", sources)
	}
}

func TestDispatchResultTimestampEpochMillis(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(Config{
		ID:     "market_price",
		Source: "CoinGecko",
		Execute: func(ctx context.Context, params Params) (any, error) {
			return map[string]any{"bitcoin": map[string]any{"usd": 60000.0}}, nil
		},
	})

	d := NewDispatcher(r)
	before := time.Now().UnixMilli()
	results := d.Dispatch(t.Context(), []intent.Hint{intent.HintPrice}, "btc price")
	after := time.Now().UnixMilli()

	if len(results) != 1 {
		t.Fatalf("Dispatch() = %d results, want 1", len(results))
	}
	if ts := results[0].Timestamp; ts < before || ts > after {
		t.Fatalf("Timestamp = %d, want epoch millis in [%d, %d]", ts, before, after)
	}

	payload, err := json.Marshal(results[0])
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var wire struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if wire.Timestamp != results[0].Timestamp {
		t.Fatalf("wire timestamp = %d, want %d", wire.Timestamp, results[0].Timestamp)
	}
}

func TestDispatchCachesWithinTTL(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r := NewRegistry()
	r.Register(Config{
		ID:       "fear_greed",
		Source:   "Alternative.me Fear & Greed Index",
		CacheTTL: time.Minute,
		Execute: func(ctx context.Context, params Params) (any, error) {
			calls.Add(1)
			return map[string]any{"value": 42}, nil
		},
	})

	d := NewDispatcher(r)
	first := d.Dispatch(t.Context(), []intent.Hint{intent.HintFear}, "sentiment?")
	second := d.Dispatch(t.Context(), []intent.Hint{intent.HintFear}, "sentiment?")

	if calls.Load() != 1 {
		t.Fatalf("execute called %d times, want 1 (second dispatch served from cache)", calls.Load())
	}
	if first[0].Cached {
		t.Fatal("first result marked cached")
	}
	if !second[0].Cached {
		t.Fatal("second result not marked cached")
	}
}

func TestResultCacheExpiry(t *testing.T) {
	t.Parallel()

	c := newResultCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.put("fear_greed", typesResult("Alternative.me"), 30*time.Second)
	if _, ok := c.get("fear_greed"); !ok {
		t.Fatal("fresh entry missing")
	}

	now = now.Add(time.Minute)
	if _, ok := c.get("fear_greed"); ok {
		t.Fatal("expired entry still served")
	}
}
