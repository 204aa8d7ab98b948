package router

import (
	"errors"
	"testing"
	"time"

	"github.com/nexuslabs/nexus/internal/resilience"
	"github.com/nexuslabs/nexus/pkg/provider/llm"
	llmmock "github.com/nexuslabs/nexus/pkg/provider/llm/mock"
	"github.com/nexuslabs/nexus/pkg/types"
)

func collect(t *testing.T, ch <-chan Token) []Token {
	t.Helper()
	var tokens []Token
	deadline := time.After(5 * time.Second)
	for {
		select {
		case tok, ok := <-ch:
			if !ok {
				return tokens
			}
			tokens = append(tokens, tok)
		case <-deadline:
			t.Fatal("timed out draining token stream")
		}
	}
}

func TestStreamFreeTier(t *testing.T) {
	t.Parallel()

	baseline := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "BTC"}, {Text: " is"}, {Text: " up", FinishReason: "stop"}},
	}
	r := New([]Backend{{Provider: baseline, Model: "llama-3.3-70b", Vendor: "Groq"}}, nil)

	ch, err := r.Stream(t.Context(), Options{System: "sys", User: "price of btc"}, types.TierFree)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	tokens := collect(t, ch)
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	for _, tok := range tokens {
		if tok.Model != "llama-3.3-70b" {
			t.Fatalf("token model = %q, want llama-3.3-70b", tok.Model)
		}
		if tok.Err != nil {
			t.Fatalf("unexpected token error: %v", tok.Err)
		}
	}

	req := baseline.StreamCalls[0].Req
	if req.SystemPrompt != "sys" || req.MaxTokens != DefaultMaxOutputTokens {
		t.Fatalf("request = %+v, want system prompt and default max tokens", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "price of btc" {
		t.Fatalf("messages = %+v, want single user message", req.Messages)
	}
}

func TestStreamProTierPrefersPremium(t *testing.T) {
	t.Parallel()

	premium := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "hi", FinishReason: "stop"}}}
	baseline := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "hi", FinishReason: "stop"}}}
	r := New(
		[]Backend{{Provider: baseline, Model: "llama-3.3-70b", Vendor: "Groq"}},
		[]Backend{{Provider: premium, Model: "claude-sonnet-4-6", Vendor: "Anthropic"}},
	)

	ch, err := r.Stream(t.Context(), Options{User: "hello"}, types.TierPro)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	tokens := collect(t, ch)
	if len(tokens) != 1 || tokens[0].Model != "claude-sonnet-4-6" {
		t.Fatalf("tokens = %+v, want one claude token", tokens)
	}
	if baseline.Calls() != 0 {
		t.Fatalf("baseline called %d times, want 0", baseline.Calls())
	}
}

func TestStreamProTierFallsBackOnStartFailure(t *testing.T) {
	t.Parallel()

	premium := &llmmock.Provider{StreamErr: errors.New("invalid api key")}
	baseline := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "hi", FinishReason: "stop"}}}
	r := New(
		[]Backend{{Provider: baseline, Model: "llama-3.3-70b", Vendor: "Groq"}},
		[]Backend{{Provider: premium, Model: "claude-sonnet-4-6", Vendor: "Anthropic"}},
	)

	ch, err := r.Stream(t.Context(), Options{User: "hello"}, types.TierPro)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	tokens := collect(t, ch)
	if len(tokens) != 1 || tokens[0].Model != "llama-3.3-70b" {
		t.Fatalf("tokens = %+v, want one llama token from the fallback", tokens)
	}
	if premium.Calls() != 1 {
		t.Fatalf("premium called %d times, want 1", premium.Calls())
	}
}

func TestStreamNoProviders(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	if _, err := r.Stream(t.Context(), Options{User: "hello"}, types.TierFree); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
	if r.Configured() || r.Healthy() {
		t.Fatal("empty router reported configured or healthy")
	}
}

func TestStreamAllStartFailures(t *testing.T) {
	t.Parallel()

	broken := &llmmock.Provider{StreamErr: errors.New("connection refused")}
	r := New([]Backend{{Provider: broken, Model: "llama-3.3-70b", Vendor: "Groq"}}, nil)

	_, err := r.Stream(t.Context(), Options{User: "hello"}, types.TierFree)
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestStreamMidStreamError(t *testing.T) {
	t.Parallel()

	baseline := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "partial"},
			{Text: "rate limit exceeded", FinishReason: "error"},
		},
	}
	r := New([]Backend{{Provider: baseline, Model: "llama-3.3-70b", Vendor: "Groq"}}, nil)

	ch, err := r.Stream(t.Context(), Options{User: "hello"}, types.TierFree)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	tokens := collect(t, ch)
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want partial text plus terminal error", len(tokens))
	}
	if tokens[0].Text != "partial" || tokens[0].Err != nil {
		t.Fatalf("first token = %+v, want plain text", tokens[0])
	}
	if tokens[1].Err == nil {
		t.Fatal("terminal token carries no error")
	}
	// A mid-stream failure must not trigger a second backend attempt.
	if baseline.Calls() != 1 {
		t.Fatalf("backend called %d times, want 1", baseline.Calls())
	}
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	r := New(
		[]Backend{{Provider: &llmmock.Provider{}, Model: "llama-3.3-70b", Vendor: "Groq"}},
		[]Backend{{Provider: &llmmock.Provider{}, Model: "claude-sonnet-4-6", Vendor: "Anthropic"}},
	)
	got := r.Available()
	want := []string{"llama-3.3-70b (Groq)", "claude-sonnet-4-6 (Anthropic)"}
	if len(got) != len(want) {
		t.Fatalf("Available() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Available()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
