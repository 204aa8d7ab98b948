// Package prompt assembles the system/user prompt pair fed to the LLM router.
//
// Assembly is greedy, priority-ordered bin packing with all-or-nothing
// blocks: tool data first, then recent conversation, then long-term user
// facts under a stricter half-of-remaining cap. A block that does not fit is
// dropped entirely; nothing is truncated mid-block, and the user message is
// never altered.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nexuslabs/nexus/pkg/types"
)

// MaxInputTokens bounds the estimated size of system prompt + user message +
// context blocks.
const MaxInputTokens = 3000

// MemoryContext carries the memory reads fetched for one request. Either
// field may be empty when the store missed or was unreachable.
type MemoryContext struct {
	ShortTerm string
	LongTerm  string
}

// Prompt is the assembled pair handed to a provider.
type Prompt struct {
	System string
	User   string
}

// EstimateTokens is the deliberately coarse size heuristic used for budget
// packing: one token per four characters, rounded up. It keeps packing
// conservative and model-agnostic; it is not a tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Build assembles the prompt for one request. The user message passes
// through untouched; all budget pressure lands on the context blocks.
func Build(userMessage string, mode types.Mode, memory MemoryContext, toolResults []types.ToolResult) Prompt {
	system := modePrompt(mode)

	var context strings.Builder
	remaining := MaxInputTokens - EstimateTokens(system) - EstimateTokens(userMessage)

	// Priority 1: tool data, the most time-sensitive content.
	if len(toolResults) > 0 {
		block := "\n\n---\n## Live Data (Retrieved Just Now)\n" + formatToolResults(toolResults)
		if cost := EstimateTokens(block); cost < remaining {
			context.WriteString(block)
			remaining -= cost
		}
	}

	// Priority 2: recent conversation.
	if memory.ShortTerm != "" {
		block := "\n\n---\n## Recent Conversation\n" + memory.ShortTerm
		if cost := EstimateTokens(block); cost < remaining {
			context.WriteString(block)
			remaining -= cost
		}
	}

	// Priority 3: long-term user facts, admitted only under half the
	// remaining budget. Lower marginal value per token than the rest.
	if memory.LongTerm != "" {
		block := "\n\n---\n## User Context\n" + memory.LongTerm
		if EstimateTokens(block)*2 < remaining {
			context.WriteString(block)
		}
	}

	return Prompt{
		System: system + context.String(),
		User:   userMessage,
	}
}

// formatToolResults renders each result with its source label, fetch time
// and latency, so the model can judge freshness.
func formatToolResults(results []types.ToolResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		var data string
		switch v := r.Data.(type) {
		case string:
			data = v
		default:
			encoded, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				encoded = []byte(fmt.Sprintf("%v", v))
			}
			data = string(encoded)
		}
		fetched := time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339)
		blocks = append(blocks, fmt.Sprintf("[Source: %s | Fetched: %s | Latency: %dms]\n%s", r.Source, fetched, r.LatencyMs, data))
	}
	return strings.Join(blocks, "\n\n")
}
