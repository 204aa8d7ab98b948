package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/nexuslabs/nexus/internal/orchestrator"
	"github.com/nexuslabs/nexus/internal/router"
	"github.com/nexuslabs/nexus/internal/tool"
	memmock "github.com/nexuslabs/nexus/pkg/memory/mock"
	"github.com/nexuslabs/nexus/pkg/provider/llm"
	llmmock "github.com/nexuslabs/nexus/pkg/provider/llm/mock"
	"github.com/nexuslabs/nexus/pkg/types"
)

// testEnv bundles the doubles behind a Server under test.
type testEnv struct {
	server    *Server
	orch      *orchestrator.Orchestrator
	registry  *tool.Registry
	shortTerm *memmock.ShortTermStore
}

func newTestEnv(t *testing.T, free, pro []router.Backend, cfg Config) *testEnv {
	t.Helper()

	registry := tool.NewRegistry()
	if err := registry.Register(tool.Config{
		ID:     "market_price",
		Name:   "Market Price",
		Source: "CoinGecko",
		Execute: func(context.Context, tool.Params) (any, error) {
			return map[string]any{"bitcoin": map[string]any{"usd": 60000.0}}, nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	shortTerm := &memmock.ShortTermStore{}
	orch := orchestrator.New(
		router.New(free, pro),
		tool.NewDispatcher(registry),
		shortTerm,
		&memmock.LongTermStore{},
		orchestrator.WithDemoTokenDelay(0),
	)

	return &testEnv{
		server:    New(cfg, orch, registry),
		orch:      orch,
		registry:  registry,
		shortTerm: shortTerm,
	}
}

func freeBackend(p llm.Provider) []router.Backend {
	return []router.Backend{{Provider: p, Model: "llama-3.3-70b", Vendor: "Groq"}}
}

// parseSSE splits an event-stream body into decoded chat events.
func parseSSE(t *testing.T, body string) []types.ChatEvent {
	t.Helper()
	var events []types.ChatEvent
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		var ev types.ChatEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("unmarshal event %q: %v", payload, err)
		}
		events = append(events, ev)
	}
	return events
}

func postChat(t *testing.T, ts *httptest.Server, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/chat", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

// ─── Chat over SSE ───────────────────────────────────────────────────────────

func TestChatStreamsEvents(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "BTC is "}, {Text: "up.", FinishReason: "stop"}},
	}
	env := newTestEnv(t, freeBackend(provider), nil, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	resp := postChat(t, ts, `{"message":"price of btc?"}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	events := parseSSE(t, string(body))
	if len(events) == 0 {
		t.Fatal("no events streamed")
	}

	if events[0].Type != types.EventToolResult {
		t.Errorf("first event = %q, want tool_result", events[0].Type)
	}
	var reply strings.Builder
	for _, ev := range events {
		if ev.Type == types.EventToken {
			reply.WriteString(ev.Content)
			if ev.Model != "llama-3.3-70b" {
				t.Errorf("token model = %q, want llama-3.3-70b", ev.Model)
			}
		}
	}
	if got := reply.String(); got != "BTC is up." {
		t.Errorf("reply = %q, want %q", got, "BTC is up.")
	}
	if last := events[len(events)-1]; last.Type != types.EventDone {
		t.Errorf("last event = %q, want done", last.Type)
	}
}

func TestChatInputValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil, Config{})
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"empty message", `{"message":""}`, "Message is required"},
		{"whitespace only", `{"message":"   "}`, "Message is required"},
		{"too long", `{"message":"` + strings.Repeat("a", 2001) + `"}`, "Message too long (max 2000 chars)"},
		{"malformed json", `{"message":`, "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := postChat(t, ts, tt.body, nil)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var errBody map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errBody["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", errBody["error"], tt.wantError)
			}
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/v1/chat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestChatSessionAndTierHeaders(t *testing.T) {
	t.Parallel()

	premium := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hi", FinishReason: "stop"}},
	}
	baseline := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hi", FinishReason: "stop"}},
	}
	pro := []router.Backend{{Provider: premium, Model: "claude-sonnet-4-6", Vendor: "Anthropic"}}
	env := newTestEnv(t, freeBackend(baseline), pro, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	resp := postChat(t, ts, `{"message":"hello"}`, map[string]string{
		"X-Session-ID": "sess-42",
		"X-Tier":       "pro",
	})
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	for _, ev := range parseSSE(t, string(body)) {
		if ev.Type == types.EventToken && ev.Model != "claude-sonnet-4-6" {
			t.Errorf("token model = %q, want claude-sonnet-4-6 for pro tier", ev.Model)
		}
	}

	env.orch.Wait()
	calls := env.shortTerm.Calls()
	if len(calls) == 0 {
		t.Fatal("no short-term store calls recorded")
	}
	for _, c := range calls {
		if c.Method != "Append" {
			continue
		}
		if got := c.Args[0]; got != "sess-42" {
			t.Errorf("Append user id = %v, want sess-42", got)
		}
	}
}

// ─── Chat over WebSocket ─────────────────────────────────────────────────────

func TestChatWebSocket(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "pong", FinishReason: "stop"}},
	}
	env := newTestEnv(t, freeBackend(provider), nil, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/chat/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"message":"ping"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var events []types.ChatEvent
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		var ev types.ChatEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		events = append(events, ev)
		if ev.Type == types.EventDone {
			break
		}
	}

	var sawToken bool
	for _, ev := range events {
		if ev.Type == types.EventToken && ev.Content == "pong" {
			sawToken = true
		}
	}
	if !sawToken {
		t.Error("token event not received over websocket")
	}

	// The socket stays open for the next turn; invalid input is answered
	// with an error event instead of closing.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"message":""}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var ev types.ChatEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if ev.Type != types.EventError || ev.Content != "Message is required" {
		t.Errorf("event = %+v, want validation error", ev)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

// ─── Tools and plugins ───────────────────────────────────────────────────────

func TestListTools(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/v1/tools")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Tools []tool.Description `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tools) != 1 || body.Tools[0].ID != "market_price" {
		t.Errorf("tools = %+v, want single market_price entry", body.Tools)
	}
}

func TestPluginLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil, Config{AdminToken: "s3cret"})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	manifest := `{"id":"sentiment","name":"Sentiment","description":"scores text","endpoint":"http://127.0.0.1:1/exec"}`

	// Register.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/plugins", strings.NewReader(manifest))
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["id"] != "plugin:sentiment" {
		t.Errorf("id = %q, want plugin:sentiment", created["id"])
	}

	// List shows only the plugin, not the built-in tool.
	listResp, err := ts.Client().Get(ts.URL + "/api/v1/plugins")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer listResp.Body.Close()
	var listed struct {
		Plugins []tool.Description `json:"plugins"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Plugins) != 1 || listed.Plugins[0].ID != "plugin:sentiment" {
		t.Errorf("plugins = %+v, want single plugin:sentiment entry", listed.Plugins)
	}

	// Unregister by bare manifest id.
	delReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/plugins/sentiment", nil)
	delReq.Header.Set("Authorization", "Bearer s3cret")
	delResp, err := ts.Client().Do(delReq)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", delResp.StatusCode)
	}

	// Deleting again is a 404.
	delReq2, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/plugins/sentiment", nil)
	delReq2.Header.Set("Authorization", "Bearer s3cret")
	delResp2, err := ts.Client().Do(delReq2)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer delResp2.Body.Close()
	if delResp2.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", delResp2.StatusCode)
	}
}

func TestPluginAdminAuth(t *testing.T) {
	t.Parallel()

	manifest := `{"id":"x","name":"X","endpoint":"http://localhost/exec"}`

	t.Run("wrong token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil, nil, Config{AdminToken: "s3cret"})
		ts := httptest.NewServer(env.server.Handler())
		defer ts.Close()

		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/plugins", strings.NewReader(manifest))
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("admin disabled", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil, nil, Config{})
		ts := httptest.NewServer(env.server.Handler())
		defer ts.Close()

		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/plugins", strings.NewReader(manifest))
		req.Header.Set("Authorization", "Bearer anything")
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("reads stay open", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil, nil, Config{})
		ts := httptest.NewServer(env.server.Handler())
		defer ts.Close()

		resp, err := ts.Client().Get(ts.URL + "/api/v1/plugins")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}

// ─── Operational routes ──────────────────────────────────────────────────────

func TestOperationalRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("Get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
