package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Soft misconfiguration that the server can run with is logged as a warning
// instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}
	if cfg.Server.AdminToken == "" {
		slog.Warn("server.admin_token is empty; plugin management endpoints will be disabled")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Free.Name)
	validateProviderName("llm", cfg.Providers.LLM.Pro.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability warnings
	if cfg.Providers.LLM.Free.Name == "" && cfg.Providers.LLM.Pro.Name == "" {
		slog.Warn("no LLM provider configured; responses will use demo mode")
	}
	if cfg.Providers.LLM.Pro.Name != "" && cfg.Providers.LLM.Free.Name == "" {
		slog.Warn("providers.llm.pro is set without providers.llm.free; free-tier requests will use demo mode")
	}
	for _, entry := range []struct {
		path  string
		entry ProviderEntry
	}{
		{"providers.llm.free", cfg.Providers.LLM.Free},
		{"providers.llm.pro", cfg.Providers.LLM.Pro},
	} {
		if entry.entry.Name != "" && entry.entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required when a provider is configured", entry.path))
		}
	}

	// Embeddings ↔ memory dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}

	// Memory availability
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; conversation memory will not survive restarts")
	}
	if cfg.Memory.PostgresDSN != "" && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("memory store configured without an embeddings provider; long-term recall falls back to full-text search")
	}
	if cfg.Memory.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("memory.max_turns %d must not be negative", cfg.Memory.MaxTurns))
	}
	if cfg.Memory.ShortTermTTL < 0 {
		errs = append(errs, errors.New("memory.short_term_ttl must not be negative"))
	}

	// Tools
	if cfg.Tools.DefaultTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("tools.default_timeout_ms %d must not be negative", cfg.Tools.DefaultTimeoutMs))
	}
	if cfg.Tools.SearchTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("tools.search_timeout_ms %d must not be negative", cfg.Tools.SearchTimeoutMs))
	}
	if cfg.Tools.TavilyAPIKey == "" {
		slog.Warn("tools.tavily_api_key is empty; the live search tool will report an unconfigured key")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
