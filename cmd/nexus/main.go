// Command nexus is the main entry point for the Nexus chat intelligence server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/nexuslabs/nexus/internal/config"
	"github.com/nexuslabs/nexus/internal/health"
	"github.com/nexuslabs/nexus/internal/observe"
	"github.com/nexuslabs/nexus/internal/orchestrator"
	"github.com/nexuslabs/nexus/internal/router"
	"github.com/nexuslabs/nexus/internal/server"
	"github.com/nexuslabs/nexus/internal/tool"
	"github.com/nexuslabs/nexus/internal/tool/builtin"
	"github.com/nexuslabs/nexus/pkg/memory"
	"github.com/nexuslabs/nexus/pkg/memory/memstore"
	"github.com/nexuslabs/nexus/pkg/memory/postgres"
	"github.com/nexuslabs/nexus/pkg/provider/embeddings"
	ollamaembed "github.com/nexuslabs/nexus/pkg/provider/embeddings/ollama"
	oaembed "github.com/nexuslabs/nexus/pkg/provider/embeddings/openai"
	"github.com/nexuslabs/nexus/pkg/provider/llm"
	"github.com/nexuslabs/nexus/pkg/provider/llm/anyllm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "nexus: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "nexus: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it
	// without recreating the handler.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("nexus starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "nexus"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	free, pro, err := buildBackends(cfg, reg)
	if err != nil {
		slog.Error("failed to build LLM backends", "err", err)
		return 1
	}
	llmRouter := router.New(free, pro)

	embedder, err := buildEmbedder(cfg, reg)
	if err != nil {
		slog.Error("failed to build embeddings provider", "err", err)
		return 1
	}

	// ── Memory stores ─────────────────────────────────────────────────────────
	shortTerm, longTerm, memPinger, closeStore, err := buildStores(ctx, cfg, embedder)
	if err != nil {
		slog.Error("failed to initialise memory store", "err", err)
		return 1
	}
	defer closeStore()

	// ── Tools ─────────────────────────────────────────────────────────────────
	registry := tool.NewRegistry()
	registerTools(registry, cfg.Tools)
	dispatcher := tool.NewDispatcher(registry)

	// ── Orchestrator + HTTP server ────────────────────────────────────────────
	orch := orchestrator.New(llmRouter, dispatcher, shortTerm, longTerm)

	healthHandler := health.New(
		health.MemoryStore(memPinger),
		health.Providers(llmRouter),
	)

	srvCfg := server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		AdminToken: cfg.Server.AdminToken,
	}
	if cfg.Server.TLS != nil {
		srvCfg.TLSCertFile = cfg.Server.TLS.CertFile
		srvCfg.TLSKeyFile = cfg.Server.TLS.KeyFile
	}
	srv := server.New(srvCfg, orch, registry, server.WithHealthHandler(healthHandler))

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(diff.NewLogLevel.Slog())
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.ToolsChanged {
			registerTools(registry, new.Tools)
			slog.Info("tool configuration reloaded")
		}
		if diff.RestartRequired || diff.AdminTokenChanged {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, llmRouter)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// vendorNames maps provider names to the display vendor used in model labels.
var vendorNames = map[string]string{
	"openai":    "OpenAI",
	"anthropic": "Anthropic",
	"gemini":    "Gemini",
	"deepseek":  "DeepSeek",
	"mistral":   "Mistral",
	"groq":      "Groq",
	"ollama":    "Ollama",
	"llamacpp":  "llama.cpp",
	"llamafile": "Llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Cloud providers share the same pattern: optional APIKey + optional
	// BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// buildBackends instantiates the configured LLM tiers as router backends.
// Either tier may be absent; a fully empty result leaves the server in demo
// mode.
func buildBackends(cfg *config.Config, reg *config.Registry) (free, pro []router.Backend, err error) {
	free, err = tierBackends(cfg.Providers.LLM.Free, reg, "free")
	if err != nil {
		return nil, nil, err
	}
	pro, err = tierBackends(cfg.Providers.LLM.Pro, reg, "pro")
	if err != nil {
		return nil, nil, err
	}
	return free, pro, nil
}

func tierBackends(entry config.ProviderEntry, reg *config.Registry, tier string) ([]router.Backend, error) {
	if entry.Name == "" {
		return nil, nil
	}
	p, err := reg.CreateLLM(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not built in — skipping", "tier", tier, "name", entry.Name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s tier provider %q: %w", tier, entry.Name, err)
	}

	vendor := vendorNames[entry.Name]
	if vendor == "" {
		vendor = entry.Name
	}
	slog.Info("provider created", "tier", tier, "name", entry.Name, "model", entry.Model)
	return []router.Backend{{
		Provider: p,
		Model:    displayModel(entry.Model),
		Vendor:   vendor,
	}}, nil
}

// displayModel trims verbose vendor suffixes from model ids for event and
// label output.
func displayModel(model string) string {
	return strings.TrimSuffix(model, "-versatile")
}

// buildEmbedder instantiates the configured embeddings provider, or nil when
// none is configured.
func buildEmbedder(cfg *config.Config, reg *config.Registry) (embeddings.Provider, error) {
	entry := cfg.Providers.Embeddings
	if entry.Name == "" {
		return nil, nil
	}
	p, err := reg.CreateEmbeddings(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("embeddings provider not built in — skipping", "name", entry.Name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", entry.Model)
	return p, nil
}

// buildStores selects the PostgreSQL memory store when a DSN is configured
// and the in-process store otherwise. The returned close function is safe to
// call in all cases.
func buildStores(ctx context.Context, cfg *config.Config, embedder embeddings.Provider) (memory.ShortTermStore, memory.LongTermStore, health.Pinger, func(), error) {
	if dsn := cfg.Memory.PostgresDSN; dsn != "" {
		dims := cfg.Memory.EmbeddingDimensions
		if dims == 0 {
			dims = 1536
		}
		var opts []postgres.Option
		if embedder != nil {
			opts = append(opts, postgres.WithEmbedder(embedder))
		}
		if cfg.Memory.MaxTurns > 0 {
			opts = append(opts, postgres.WithMaxTurns(cfg.Memory.MaxTurns))
		}
		if ttl := cfg.Memory.ShortTermTTL.Std(); ttl > 0 {
			opts = append(opts, postgres.WithTTL(ttl))
		}
		store, err := postgres.NewStore(ctx, dsn, dims, opts...)
		if err != nil {
			return nil, nil, nil, func() {}, err
		}
		slog.Info("postgres memory store connected", "embedding_dims", dims, "semantic_search", embedder != nil)
		return store.ShortTerm(), store.LongTerm(), store, store.Close, nil
	}

	slog.Warn("no postgres_dsn configured — memory is in-process and not durable")
	shortTerm := memstore.NewShortTerm(cfg.Memory.MaxTurns, cfg.Memory.ShortTermTTL.Std())
	return shortTerm, memstore.NewLongTerm(0), nil, func() {}, nil
}

// registerTools (re-)registers the built-in tool set with the given settings.
// Registration replaces by id, so a reload swaps configurations in place.
func registerTools(registry *tool.Registry, tc config.ToolsConfig) {
	opts := builtin.Options{
		TavilyAPIKey:     tc.TavilyAPIKey,
		WhaleAlertAPIKey: tc.WhaleAlertAPIKey,
	}
	if tc.DefaultTimeoutMs > 0 {
		opts.DefaultTimeout = time.Duration(tc.DefaultTimeoutMs) * time.Millisecond
	}
	if tc.SearchTimeoutMs > 0 {
		opts.SearchTimeout = time.Duration(tc.SearchTimeoutMs) * time.Millisecond
	}
	for _, cfg := range builtin.All(opts) {
		if err := registry.Register(cfg); err != nil {
			slog.Warn("tool registration failed", "id", cfg.ID, "err", err)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, r *router.Router) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Nexus — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Free LLM", cfg.Providers.LLM.Free.Name, cfg.Providers.LLM.Free.Model)
	printProvider("Pro LLM", cfg.Providers.LLM.Pro.Name, cfg.Providers.LLM.Pro.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Memory.PostgresDSN != "" {
		fmt.Printf("║  Memory          : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Memory          : %-19s ║\n", "in-process")
	}
	if !r.Configured() {
		fmt.Printf("║  Mode            : %-19s ║\n", "demo (no LLM)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
