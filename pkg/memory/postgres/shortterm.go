package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexuslabs/nexus/pkg/memory"
)

// ShortTermImpl is the short-term memory layer backed by a PostgreSQL
// conversation_turns table. It keeps a bounded, TTL-limited window of
// conversation turns per user.
//
// Obtain one via [Store.ShortTerm] rather than constructing directly.
// All methods are safe for concurrent use.
type ShortTermImpl struct {
	pool     *pgxpool.Pool
	maxTurns int
	ttl      time.Duration
}

// Recent implements [memory.ShortTermStore]. It returns the user's live
// conversation window (at most maxTurns entries within the TTL), oldest
// first, one rendered entry per line.
func (s *ShortTermImpl) Recent(ctx context.Context, userID string) (string, error) {
	const q = `
		SELECT role, content, created_at
		FROM   (
		    SELECT role, content, created_at
		    FROM   conversation_turns
		    WHERE  user_id    = $1
		      AND  created_at >= now() - ($2::bigint * interval '1 microsecond')
		    ORDER  BY created_at DESC
		    LIMIT  $3
		) window
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, userID, s.ttl.Microseconds(), s.maxTurns)
	if err != nil {
		return "", fmt.Errorf("short-term store: recent: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Entry, error) {
		var e memory.Entry
		err := row.Scan(&e.Role, &e.Content, &e.Timestamp)
		return e, err
	})
	if err != nil {
		return "", fmt.Errorf("short-term store: scan rows: %w", err)
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Render())
	}
	return strings.Join(lines, "\n"), nil
}

// Append implements [memory.ShortTermStore]. It records a conversation turn,
// truncating content beyond [memory.MaxEntryContent] runes, and prunes turns
// that fell out of the window.
func (s *ShortTermImpl) Append(ctx context.Context, userID, role, content string) error {
	if runes := []rune(content); len(runes) > memory.MaxEntryContent {
		content = string(runes[:memory.MaxEntryContent])
	}

	const insert = `
		INSERT INTO conversation_turns (user_id, role, content)
		VALUES ($1, $2, $3)`

	if _, err := s.pool.Exec(ctx, insert, userID, role, content); err != nil {
		return fmt.Errorf("short-term store: append: %w", err)
	}

	// Drop turns beyond the window so the table stays bounded per user.
	const prune = `
		DELETE FROM conversation_turns
		WHERE  user_id = $1
		  AND  id NOT IN (
		      SELECT id
		      FROM   conversation_turns
		      WHERE  user_id = $1
		      ORDER  BY created_at DESC
		      LIMIT  $2
		  )`

	if _, err := s.pool.Exec(ctx, prune, userID, s.maxTurns); err != nil {
		return fmt.Errorf("short-term store: prune: %w", err)
	}
	return nil
}

// Clear implements [memory.ShortTermStore]. It drops the user's conversation
// window entirely.
func (s *ShortTermImpl) Clear(ctx context.Context, userID string) error {
	const q = `DELETE FROM conversation_turns WHERE user_id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("short-term store: clear: %w", err)
	}
	return nil
}
