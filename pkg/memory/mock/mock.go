// Package mock provides in-memory test doubles for the memory layer interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	st := &mock.ShortTermStore{}
//	st.RecentResult = "[user]: hello"
//
//	// inject st into the system under test …
//
//	if got := st.CallCount("Append"); got != 1 {
//	    t.Errorf("expected 1 Append call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/nexuslabs/nexus/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// ShortTermStore mock
// ─────────────────────────────────────────────────────────────────────────────

// ShortTermStore is a configurable test double for [memory.ShortTermStore].
// All exported *Err fields default to nil (success).
type ShortTermStore struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// RecentResult is returned by [ShortTermStore.Recent].
	RecentResult string

	// RecentErr is returned by [ShortTermStore.Recent] when non-nil.
	RecentErr error

	// AppendErr is returned by [ShortTermStore.Append] when non-nil.
	AppendErr error

	// ClearErr is returned by [ShortTermStore.Clear] when non-nil.
	ClearErr error
}

var _ memory.ShortTermStore = (*ShortTermStore)(nil)

// Calls returns a copy of all recorded method invocations.
func (m *ShortTermStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *ShortTermStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Recent implements [memory.ShortTermStore].
func (m *ShortTermStore) Recent(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Recent", Args: []any{userID}})
	return m.RecentResult, m.RecentErr
}

// Append implements [memory.ShortTermStore].
func (m *ShortTermStore) Append(_ context.Context, userID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Append", Args: []any{userID, role, content}})
	return m.AppendErr
}

// Clear implements [memory.ShortTermStore].
func (m *ShortTermStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Clear", Args: []any{userID}})
	return m.ClearErr
}

// ─────────────────────────────────────────────────────────────────────────────
// LongTermStore mock
// ─────────────────────────────────────────────────────────────────────────────

// LongTermStore is a configurable test double for [memory.LongTermStore].
type LongTermStore struct {
	mu sync.Mutex

	calls []Call

	// QueryResult is returned by [LongTermStore.Query].
	QueryResult string

	// QueryErr is returned by [LongTermStore.Query] when non-nil.
	QueryErr error

	// SaveErr is returned by [LongTermStore.Save] when non-nil.
	SaveErr error
}

var _ memory.LongTermStore = (*LongTermStore)(nil)

// Calls returns a copy of all recorded method invocations.
func (m *LongTermStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *LongTermStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Query implements [memory.LongTermStore].
func (m *LongTermStore) Query(_ context.Context, userID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Query", Args: []any{userID, text}})
	return m.QueryResult, m.QueryErr
}

// Save implements [memory.LongTermStore].
func (m *LongTermStore) Save(_ context.Context, userID, content string, memType memory.MemoryType, importance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Save", Args: []any{userID, content, memType, importance}})
	return m.SaveErr
}
