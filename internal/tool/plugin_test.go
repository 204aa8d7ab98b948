package tool

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexuslabs/nexus/internal/intent"
)

func TestPluginRoundTrip(t *testing.T) {
	t.Parallel()

	var received pluginRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("plugin endpoint hit with %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode plugin request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": "42 whales spotted"})
	}))
	defer server.Close()

	r := NewRegistry()
	id, err := r.RegisterPlugin(Manifest{
		ID:       "whale-radar",
		Name:     "Whale Radar",
		Version:  "1.0.0",
		Endpoint: server.URL,
	}, server.Client())
	if err != nil {
		t.Fatalf("RegisterPlugin: %v", err)
	}
	if id != "plugin:whale-radar" {
		t.Fatalf("registered id = %q, want plugin:whale-radar", id)
	}

	// Plugin appears in the listing.
	if !listed(r, id) {
		t.Fatal("registered plugin missing from List()")
	}

	cfg, ok := r.Get(id)
	if !ok {
		t.Fatal("registered plugin missing from Get()")
	}

	data, err := cfg.Execute(t.Context(), Params{Query: "any whales?", Extras: map[string]any{"depth": 3}})
	if err != nil {
		t.Fatalf("plugin execute: %v", err)
	}
	if received.Query != "any whales?" {
		t.Errorf("endpoint received query %q", received.Query)
	}
	if received.Extras["depth"] != float64(3) {
		t.Errorf("endpoint received extras %v", received.Extras)
	}
	payload, ok := data.(map[string]any)
	if !ok || payload["data"] != "42 whales spotted" {
		t.Errorf("execute returned %v", data)
	}

	// And disappears after unregistration.
	if !r.UnregisterPlugin("whale-radar") {
		t.Fatal("UnregisterPlugin = false")
	}
	if listed(r, id) {
		t.Fatal("unregistered plugin still in List()")
	}
}

func TestRegisterPluginValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	for _, manifest := range []Manifest{
		{Name: "no id", Endpoint: "https://example.com"},
		{ID: "no-name", Endpoint: "https://example.com"},
		{ID: "bad-endpoint", Name: "Bad", Endpoint: "ftp://example.com"},
	} {
		if _, err := r.RegisterPlugin(manifest, nil); err == nil {
			t.Errorf("RegisterPlugin(%+v) succeeded, want validation error", manifest)
		}
	}
}

func TestPluginEndpointFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewRegistry()
	id, err := r.RegisterPlugin(Manifest{
		ID:       "flaky",
		Name:     "Flaky Plugin",
		Endpoint: server.URL,
	}, server.Client())
	if err != nil {
		t.Fatalf("RegisterPlugin: %v", err)
	}

	cfg, _ := r.Get(id)
	if _, err := cfg.Execute(t.Context(), Params{Query: "q"}); err == nil {
		t.Fatal("execute against failing endpoint should error")
	}

	// A failing plugin is dropped from dispatch results like any other tool.
	d := NewDispatcher(r)
	if results := d.Dispatch(t.Context(), []intent.Hint{intent.HintNews}, "news"); len(results) != 0 {
		t.Fatalf("Dispatch = %d results, want 0", len(results))
	}
}

func listed(r *Registry, id string) bool {
	for _, desc := range r.List() {
		if desc.ID == id {
			return true
		}
	}
	return false
}
