// Package types defines the shared types used across all Nexus packages.
//
// These types form the lingua franca between the intent classifier, tool
// dispatcher, memory layers, LLM providers, and the orchestrator. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}

// Mode selects the persona template used for the system prompt.
type Mode string

const (
	// ModeAnalyst is the default data-first market analysis persona.
	ModeAnalyst Mode = "analyst"

	// ModeTrader focuses on technical analysis and market structure.
	ModeTrader Mode = "trader"

	// ModeDefi focuses on DeFi protocols, yields, and contract risk.
	ModeDefi Mode = "defi"

	// ModeRisk produces conservative risk assessments with bull/bear cases.
	ModeRisk Mode = "risk"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeAnalyst, ModeTrader, ModeDefi, ModeRisk:
		return true
	}
	return false
}

// Tier is the user's service level. It governs which LLM provider chain the
// router attempts first.
type Tier string

const (
	// TierFree routes to the baseline provider only.
	TierFree Tier = "free"

	// TierPro attempts the premium provider first, falling back to baseline.
	TierPro Tier = "pro"
)

// EventType discriminates the variants of a ChatEvent.
type EventType string

const (
	// EventToken carries one incremental text fragment of the response.
	EventToken EventType = "token"

	// EventToolResult carries the output of one completed tool invocation.
	EventToolResult EventType = "tool_result"

	// EventError is a terminal event carrying a user-facing error message.
	EventError EventType = "error"

	// EventDone is the terminal event of a successful response.
	EventDone EventType = "done"
)

// ChatEvent is the wire-level unit streamed to chat clients.
//
// Within one request the ordering contract is: zero or more tool_result
// events (unordered among themselves, all before or interleaved with the
// first token), then zero or more token events in generation order, then
// exactly one terminal done or error event. Nothing follows the terminal
// event.
type ChatEvent struct {
	Type EventType `json:"type"`

	// Content is the token text (EventToken) or the user-facing message
	// (EventError). Empty otherwise.
	Content string `json:"content,omitempty"`

	// Tool is the source label of the tool that produced Data (EventToolResult).
	Tool string `json:"tool,omitempty"`

	// Data is the tool's opaque result payload (EventToolResult).
	Data any `json:"data,omitempty"`

	// Model identifies the model that generated token content, when known.
	Model string `json:"model,omitempty"`
}

// ToolResult is the output of one tool invocation.
// It is created once by the executing tool and never mutated afterwards.
type ToolResult struct {
	// Data is the opaque, JSON-serialisable payload fetched by the tool.
	Data any `json:"data"`

	// Source is the human-readable label of the upstream data source
	// (e.g., "CoinGecko").
	Source string `json:"source"`

	// Timestamp is when the fetch completed, as Unix epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	// LatencyMs is how long the fetch took.
	LatencyMs int64 `json:"latency_ms"`

	// Cached indicates the result was served from the advisory tool cache
	// rather than a live fetch.
	Cached bool `json:"cached"`
}
