// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the Nexus server.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Nexus server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog converts l to the slog level used when installing the handler.
// Unrecognised levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration wraps time.Duration so YAML values like "30m" or "24h" decode
// directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for Nexus.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Memory    MemoryConfig    `yaml:"memory"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ServerConfig holds network, logging, and admin settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AdminToken guards the plugin management endpoints. When empty, plugin
	// registration over HTTP is disabled.
	AdminToken string `yaml:"admin_token"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the LLM backends per tier and the embeddings
// provider used by long-term memory.
type ProvidersConfig struct {
	LLM        LLMTiersConfig `yaml:"llm"`
	Embeddings ProviderEntry  `yaml:"embeddings"`
}

// LLMTiersConfig maps service tiers to LLM backends. Free is the baseline
// model served to everyone; Pro is tried first for pro-tier requests and
// falls back to Free. Either may be left unset; with both unset the server
// runs in demo mode.
type LLMTiersConfig struct {
	Free ProviderEntry `yaml:"free"`
	Pro  ProviderEntry `yaml:"pro"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "groq",
	// "anthropic", "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "llama-3.3-70b-versatile", "claude-sonnet-4-6").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// MemoryConfig holds settings for the conversation memory layer.
type MemoryConfig struct {
	// PostgresDSN is the PostgreSQL connection string for the pgvector memory
	// store. When empty, an in-process store is used instead (no persistence
	// across restarts).
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the vector dimension used for the embeddings
	// column. Must match the model configured in Providers.Embeddings.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// ShortTermTTL is how long a user's recent conversation window is kept
	// (e.g., "24h"). Zero uses the store default.
	ShortTermTTL Duration `yaml:"short_term_ttl"`

	// MaxTurns caps the number of recent turns kept per user. Zero uses the
	// store default.
	MaxTurns int `yaml:"max_turns"`
}

// ToolsConfig holds API keys and timeouts for the built-in data tools.
// Tools whose key is missing degrade gracefully (the search tool reports an
// unconfigured key; the whale tracker falls back to public data).
type ToolsConfig struct {
	// TavilyAPIKey enables the live web search tool.
	TavilyAPIKey string `yaml:"tavily_api_key"`

	// WhaleAlertAPIKey enables the Whale Alert API for the whale tracker.
	WhaleAlertAPIKey string `yaml:"whale_alert_api_key"`

	// DefaultTimeoutMs is the per-tool execution timeout in milliseconds.
	// Zero uses the built-in default.
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`

	// SearchTimeoutMs is the timeout for the live search tool, which is
	// allowed to run longer than data lookups. Zero uses the built-in default.
	SearchTimeoutMs int `yaml:"search_timeout_ms"`
}
