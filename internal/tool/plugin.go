package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Manifest describes an external plugin tool: an HTTP endpoint that accepts
// POST {query, extras} and returns {data}.
type Manifest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Author      string   `json:"author"`
	Endpoint    string   `json:"endpoint"`
	TimeoutMs   int      `json:"timeout_ms,omitempty"`
	CacheTTLSec int      `json:"cache_ttl_sec,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Validate checks the fields a manifest must carry to be registrable.
func (m Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("plugin manifest: id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("plugin manifest: name is required")
	}
	if !strings.HasPrefix(m.Endpoint, "http://") && !strings.HasPrefix(m.Endpoint, "https://") {
		return fmt.Errorf("plugin manifest: endpoint must be an http(s) URL")
	}
	return nil
}

// PluginIDPrefix namespaces plugin tool ids so they can never collide with
// built-in tools.
const PluginIDPrefix = "plugin:"

// RegisterPlugin wraps the manifest's HTTP endpoint as a tool and registers
// it. An existing plugin with the same id is replaced. The returned id is the
// namespaced registry key.
func (r *Registry) RegisterPlugin(manifest Manifest, client *http.Client) (string, error) {
	if err := manifest.Validate(); err != nil {
		return "", err
	}
	if client == nil {
		client = http.DefaultClient
	}

	timeout := DefaultTimeout
	if manifest.TimeoutMs > 0 {
		timeout = time.Duration(manifest.TimeoutMs) * time.Millisecond
	}

	cfg := Config{
		ID:          PluginIDPrefix + manifest.ID,
		Name:        manifest.Name,
		Description: manifest.Description,
		Source:      manifest.Name + " (Plugin)",
		Timeout:     timeout,
		CacheTTL:    time.Duration(manifest.CacheTTLSec) * time.Second,
		Execute:     pluginExecute(manifest, client),
	}
	if err := r.Register(cfg); err != nil {
		return "", err
	}

	slog.Info("tool registry: plugin registered", "id", manifest.ID, "name", manifest.Name, "version", manifest.Version)
	return cfg.ID, nil
}

// UnregisterPlugin removes a plugin by its manifest id. It reports whether a
// plugin was actually removed.
func (r *Registry) UnregisterPlugin(id string) bool {
	removed := r.Unregister(PluginIDPrefix + id)
	if removed {
		slog.Info("tool registry: plugin unregistered", "id", id)
	}
	return removed
}

// pluginRequest is the wire format POSTed to a plugin endpoint.
type pluginRequest struct {
	Query  string         `json:"query"`
	Extras map[string]any `json:"extras,omitempty"`
}

func pluginExecute(manifest Manifest, client *http.Client) ExecuteFunc {
	return func(ctx context.Context, params Params) (any, error) {
		body, err := json.Marshal(pluginRequest{Query: params.Query, Extras: params.Extras})
		if err != nil {
			return nil, fmt.Errorf("plugin %s: encode request: %w", manifest.ID, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, manifest.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("plugin %s: build request: %w", manifest.ID, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", manifest.ID, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("plugin %s: endpoint returned %d", manifest.ID, resp.StatusCode)
		}

		var data any
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, fmt.Errorf("plugin %s: decode response: %w", manifest.ID, err)
		}
		return data, nil
	}
}
