// Package memstore provides in-process implementations of the memory stores.
// It backs deployments without a Postgres instance: the short-term store keeps
// a bounded per-user conversation window, and the long-term store retrieves
// saved facts by keyword overlap instead of vector similarity.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexuslabs/nexus/pkg/memory"
)

// ShortTerm is an in-memory memory.ShortTermStore. Entries older than the TTL
// are dropped lazily on read and write.
type ShortTerm struct {
	mu       sync.Mutex
	users    map[string][]memory.Entry
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

var _ memory.ShortTermStore = (*ShortTerm)(nil)

// NewShortTerm creates a short-term store holding at most maxTurns entries per
// user, each expiring after ttl. Zero values select the package defaults.
func NewShortTerm(maxTurns int, ttl time.Duration) *ShortTerm {
	if maxTurns <= 0 {
		maxTurns = memory.DefaultMaxTurns
	}
	if ttl <= 0 {
		ttl = memory.DefaultTTL
	}
	return &ShortTerm{
		users:    make(map[string][]memory.Entry),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Recent returns the user's live conversation window, oldest first, one
// rendered entry per line.
func (s *ShortTerm) Recent(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.pruneLocked(userID)
	if len(entries) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Render())
	}
	return strings.Join(lines, "\n"), nil
}

// Append records a conversation turn. Content beyond MaxEntryContent runes is
// truncated before storage.
func (s *ShortTerm) Append(_ context.Context, userID, role, content string) error {
	if runes := []rune(content); len(runes) > memory.MaxEntryContent {
		content = string(runes[:memory.MaxEntryContent])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.pruneLocked(userID)
	entries = append(entries, memory.Entry{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	if len(entries) > s.maxTurns {
		entries = entries[len(entries)-s.maxTurns:]
	}
	s.users[userID] = entries
	return nil
}

// Clear drops the user's conversation window.
func (s *ShortTerm) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

func (s *ShortTerm) pruneLocked(userID string) []memory.Entry {
	entries := s.users[userID]
	cutoff := s.now().Add(-s.ttl)
	i := 0
	for i < len(entries) && entries[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		entries = entries[i:]
		if len(entries) == 0 {
			delete(s.users, userID)
		} else {
			s.users[userID] = entries
		}
	}
	return entries
}

type fact struct {
	content    string
	memType    memory.MemoryType
	importance float64
	tokens     map[string]struct{}
}

// LongTerm is an in-memory memory.LongTermStore. Query scores saved facts by
// keyword overlap with the request text, a rough stand-in for the vector
// search the Postgres store performs.
type LongTerm struct {
	mu    sync.Mutex
	users map[string][]fact
	limit int
}

var _ memory.LongTermStore = (*LongTerm)(nil)

// NewLongTerm creates a long-term store returning at most limit facts per
// query (default 5).
func NewLongTerm(limit int) *LongTerm {
	if limit <= 0 {
		limit = 5
	}
	return &LongTerm{users: make(map[string][]fact), limit: limit}
}

// Query returns the stored facts most relevant to text, formatted one per
// line as "- [type] content". Facts sharing no keyword with the text are
// excluded.
func (l *LongTerm) Query(_ context.Context, userID, text string) (string, error) {
	queryTokens := tokenize(text)
	if len(queryTokens) == 0 {
		return "", nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	type scored struct {
		fact  fact
		score float64
	}
	var matches []scored
	for _, f := range l.users[userID] {
		overlap := 0
		for tok := range queryTokens {
			if _, ok := f.tokens[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		matches = append(matches, scored{f, float64(overlap) * f.importance})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > l.limit {
		matches = matches[:l.limit]
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, "- ["+string(m.fact.memType)+"] "+m.fact.content)
	}
	return strings.Join(lines, "\n"), nil
}

// Save stores a fact for later retrieval.
func (l *LongTerm) Save(_ context.Context, userID, content string, memType memory.MemoryType, importance float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[userID] = append(l.users[userID], fact{
		content:    content,
		memType:    memType,
		importance: importance,
		tokens:     tokenize(content),
	})
	return nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'()[]")
		if len(word) < 3 {
			continue
		}
		tokens[word] = struct{}{}
	}
	return tokens
}
