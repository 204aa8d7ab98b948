package tool

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nexuslabs/nexus/internal/intent"
)

// hintTools maps each intent hint to the tool ids that serve it. The mapping
// is many-to-many: analysis needs both price data and sentiment.
var hintTools = map[intent.Hint][]string{
	intent.HintPrice:     {"market_price"},
	intent.HintMarket:    {"market_price"},
	intent.HintNews:      {"crypto_news"},
	intent.HintFear:      {"fear_greed"},
	intent.HintAnalysis:  {"market_price", "fear_greed"},
	intent.HintDefi:      {"defi_tvl"},
	intent.HintPortfolio: {"market_price"},
	intent.HintSearch:    {"live_search"},
}

// Description summarizes one registered tool for listing endpoints.
type Description struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry is the capability table shared across all concurrent requests.
//
// The table is stored as an atomically-swapped immutable snapshot: readers
// ([Registry.Get], [Registry.Resolve], [Registry.List]) load the current map
// without locking and are never exposed to a half-applied registration.
// Writers serialize on a mutex and publish a full copy.
type Registry struct {
	mu       sync.Mutex // serializes writers
	snapshot atomic.Pointer[map[string]Config]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := map[string]Config{}
	r.snapshot.Store(&empty)
	return r
}

// Register adds or replaces a tool. It returns an error only for a config
// without an id.
func (r *Registry) Register(cfg Config) error {
	if cfg.ID == "" {
		return fmt.Errorf("tool registry: config must have a non-empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copySnapshot()
	next[cfg.ID] = cfg
	r.snapshot.Store(&next)
	return nil
}

// Unregister removes the tool with the given id. It reports whether a tool
// was actually removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	if _, ok := current[id]; !ok {
		return false
	}
	next := r.copySnapshot()
	delete(next, id)
	r.snapshot.Store(&next)
	return true
}

// Get returns the tool with the given id.
func (r *Registry) Get(id string) (Config, bool) {
	cfg, ok := (*r.snapshot.Load())[id]
	return cfg, ok
}

// List returns descriptions of all registered tools, sorted by id.
func (r *Registry) List() []Description {
	current := *r.snapshot.Load()
	out := make([]Description, 0, len(current))
	for _, cfg := range current {
		out = append(out, Description{ID: cfg.ID, Name: cfg.Name, Description: cfg.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve maps intent hints to the deduplicated set of registered tools that
// serve them, in first-mention order. Hints whose tools are not registered
// resolve to nothing.
func (r *Registry) Resolve(hints []intent.Hint) []Config {
	current := *r.snapshot.Load()

	seen := make(map[string]struct{})
	var resolved []Config
	for _, hint := range hints {
		for _, id := range hintTools[hint] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if cfg, ok := current[id]; ok {
				resolved = append(resolved, cfg)
			}
		}
	}
	return resolved
}

// copySnapshot returns a mutable copy of the current table. Callers must hold mu.
func (r *Registry) copySnapshot() map[string]Config {
	current := *r.snapshot.Load()
	next := make(map[string]Config, len(current)+1)
	for id, cfg := range current {
		next[id] = cfg
	}
	return next
}
