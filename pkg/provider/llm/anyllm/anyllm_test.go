package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/nexuslabs/nexus/pkg/provider/llm"
	"github.com/nexuslabs/nexus/pkg/types"
)

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "llama-3.3-70b-versatile")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("groq", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_Groq_WithAPIKey checks that the Groq backend constructs successfully.
func TestNew_Groq_WithAPIKey(t *testing.T) {
	p, err := New("groq", "llama-3.3-70b-versatile", anyllmlib.WithAPIKey("gsk_test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "llama-3.3-70b-versatile" {
		t.Errorf("expected model llama-3.3-70b-versatile, got %q", p.model)
	}
}

// TestNew_OpenAI_MissingAPIKey checks that OpenAI returns an error when no API
// key is available. This relies on OPENAI_API_KEY not being set.
func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New("openai", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestConvenienceConstructors checks that the per-vendor constructors delegate
// correctly.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Provider, error)
	}{
		{"NewGroq", func() (*Provider, error) { return NewGroq("llama-3.3-70b-versatile", anyllmlib.WithAPIKey("gsk_test")) }},
		{"NewAnthropic", func() (*Provider, error) {
			return NewAnthropic("claude-sonnet-4-6", anyllmlib.WithAPIKey("sk-ant-test"))
		}},
		{"NewOpenAI", func() (*Provider, error) { return NewOpenAI("gpt-4o", anyllmlib.WithAPIKey("sk-test")) }},
		{"NewOllama", func() (*Provider, error) { return NewOllama("llama3") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if p == nil {
				t.Fatalf("%s: expected non-nil provider", tt.name)
			}
		})
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that the system prompt is prepended
// as a system-role message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "llama-3.3-70b-versatile"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a crypto analyst.",
		Messages: []types.Message{
			{Role: "user", Content: "price of btc?"},
		},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].Role != "user" {
		t.Errorf("second message role = %q, want user", params.Messages[1].Role)
	}
	if params.Model != "llama-3.3-70b-versatile" {
		t.Errorf("model = %q", params.Model)
	}
}

// TestBuildParams_Sampling checks temperature and max token plumbing.
func TestBuildParams_Sampling(t *testing.T) {
	p := &Provider{model: "llama-3.3-70b-versatile"}

	params := p.buildParams(llm.CompletionRequest{Temperature: 0.7, MaxTokens: 1500})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 1500 {
		t.Errorf("max tokens = %v, want 1500", params.MaxTokens)
	}

	unset := p.buildParams(llm.CompletionRequest{})
	if unset.Temperature != nil {
		t.Errorf("zero temperature should stay unset, got %v", *unset.Temperature)
	}
	if unset.MaxTokens != nil {
		t.Errorf("zero max tokens should stay unset, got %v", *unset.MaxTokens)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
		wantOutput  int
		wantVision  bool
	}{
		{"llama-3.3-70b-versatile", 128_000, 32_768, false},
		{"llama-3.1-8b-instant", 128_000, 8_192, false},
		{"llama2", 8_192, 8_192, false},
		{"gpt-4o-mini", 128_000, 16_384, true},
		{"gpt-4o", 128_000, 16_384, true},
		{"gpt-4", 8_192, 4_096, false},
		{"claude-sonnet-4-6", 200_000, 8_192, true},
		{"claude-3-5-haiku-latest", 200_000, 8_192, true},
		{"gemini-1.5-pro", 2_097_152, 8_192, true},
		{"gemini-2.0-flash", 1_048_576, 8_192, true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.wantContext {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.wantContext)
			}
			if caps.MaxOutputTokens != tt.wantOutput {
				t.Errorf("MaxOutputTokens = %d, want %d", caps.MaxOutputTokens, tt.wantOutput)
			}
			if caps.SupportsVision != tt.wantVision {
				t.Errorf("SupportsVision = %v, want %v", caps.SupportsVision, tt.wantVision)
			}
			if !caps.SupportsStreaming {
				t.Error("expected SupportsStreaming=true")
			}
		})
	}
}

// TestModelCapabilities_Unknown checks that unknown models get safe defaults.
func TestModelCapabilities_Unknown(t *testing.T) {
	caps := modelCapabilities("my-custom-model")
	if caps.ContextWindow <= 0 || caps.MaxOutputTokens <= 0 {
		t.Errorf("unknown model: expected positive limits, got %+v", caps)
	}
}

// TestModelCapabilities_CaseInsensitive checks that matching ignores case.
func TestModelCapabilities_CaseInsensitive(t *testing.T) {
	lower := modelCapabilities("claude-sonnet-4-6")
	upper := modelCapabilities("CLAUDE-SONNET-4-6")
	if lower.ContextWindow != upper.ContextWindow {
		t.Errorf("case should not matter: got %d vs %d", lower.ContextWindow, upper.ContextWindow)
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

func TestCountTokens(t *testing.T) {
	p := &Provider{model: "llama-3.3-70b-versatile"}

	count, err := p.CountTokens(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 tokens for empty messages, got %d", count)
	}

	one, err := p.CountTokens([]types.Message{{Role: "user", Content: "Hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if one <= 0 {
		t.Errorf("expected positive token count, got %d", one)
	}

	two, err := p.CountTokens([]types.Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there, how can I help?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if two <= one {
		t.Errorf("expected more tokens for two messages than one: %d <= %d", two, one)
	}
}

// ── Capabilities ──────────────────────────────────────────────────────────────

func TestCapabilities_DelegatesToModel(t *testing.T) {
	p := &Provider{model: "claude-sonnet-4-6"}
	caps := p.Capabilities()
	want := modelCapabilities("claude-sonnet-4-6")
	if caps != want {
		t.Errorf("Capabilities() = %+v, want %+v", caps, want)
	}
}
