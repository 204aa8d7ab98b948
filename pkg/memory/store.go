// Package memory defines the two-layer conversational memory used by Nexus.
//
//   - Short-term memory ([ShortTermStore]): a bounded, expiring window of
//     recent conversation turns per user. Cheap to write, cheap to read,
//     evicted aggressively.
//   - Long-term memory ([LongTermStore]): selectively persisted user facts
//     (holdings, preferences, explicit "remember this" requests) retrievable
//     by semantic or keyword similarity.
//
// Both layers are optional at runtime. Callers treat a read failure as an
// empty context, never as a hard error — the orchestrator degrades rather
// than failing the request.
//
// All interfaces are public so that external packages can supply alternative
// storage backends (Postgres/pgvector, in-memory, …) without depending on
// Nexus internals. Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// MaxEntryContent is the maximum stored length of a single turn's content.
// Longer content is truncated before persistence.
const MaxEntryContent = 500

// DefaultMaxTurns is the default short-term window size per user.
const DefaultMaxTurns = 20

// DefaultTTL is the default lifetime of short-term entries.
const DefaultTTL = 24 * time.Hour

// Entry is one conversation turn held in short-term memory.
type Entry struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the turn text, capped at MaxEntryContent characters.
	Content string

	// Timestamp is when the turn was recorded.
	Timestamp time.Time

	// Summary is an optional condensed form preferred over Content when
	// rendering the entry into a prompt.
	Summary string
}

// Render returns the prompt line for e: "[role]: text", preferring Summary.
func (e Entry) Render() string {
	text := e.Content
	if e.Summary != "" {
		text = e.Summary
	}
	return "[" + e.Role + "]: " + text
}

// MemoryType classifies a long-term memory entry.
type MemoryType string

const (
	// TypePreference marks a stated user preference.
	TypePreference MemoryType = "preference"

	// TypeFact marks a general fact about the user.
	TypeFact MemoryType = "fact"

	// TypePortfolio marks a statement about the user's holdings.
	TypePortfolio MemoryType = "portfolio"

	// TypeInteraction marks an ordinary exchange, not normally persisted.
	TypeInteraction MemoryType = "interaction"
)

// ShortTermStore is the bounded recent-conversation layer.
//
// Implementations enforce a per-user entry cap (oldest evicted first) and a
// TTL on stored turns.
type ShortTermStore interface {
	// Recent returns the user's recent turns serialised one per line in
	// chronological order ("[role]: content"). Returns "" when the user has
	// no live entries.
	Recent(ctx context.Context, userID string) (string, error)

	// Append records one turn for the user. Content longer than
	// MaxEntryContent is truncated. role must be "user" or "assistant".
	Append(ctx context.Context, userID, role, content string) error

	// Clear removes all short-term entries for the user.
	Clear(ctx context.Context, userID string) error
}

// LongTermStore is the persisted user-fact layer.
type LongTermStore interface {
	// Query returns stored facts relevant to text, serialised one per line
	// ("- [type] content"), most relevant first. Returns "" when nothing
	// relevant is stored.
	Query(ctx context.Context, userID, text string) (string, error)

	// Save persists one fact with its classification and importance score
	// in [0,1]. Entries persist indefinitely.
	Save(ctx context.Context, userID, content string, memType MemoryType, importance float64) error
}
