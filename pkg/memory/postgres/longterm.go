package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/nexuslabs/nexus/pkg/memory"
	"github.com/nexuslabs/nexus/pkg/provider/embeddings"
)

// Maximum cosine distance for a memory to count as relevant, and how many
// memories a single query may return.
const (
	maxDistance = 0.5
	queryLimit  = 5
)

// LongTermImpl is the long-term memory layer backed by a PostgreSQL
// user_memories table with a pgvector HNSW index for fast approximate
// nearest-neighbour search.
//
// When no embedding provider is configured (or embedding the query fails),
// retrieval falls back to full-text search over the content column.
//
// Obtain one via [Store.LongTerm] rather than constructing directly.
// All methods are safe for concurrent use.
type LongTermImpl struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

type storedMemory struct {
	content string
	memType string
}

// Query implements [memory.LongTermStore]. It returns the user's stored facts
// most relevant to text, formatted one per line as "- [type] content", most
// relevant first.
func (l *LongTermImpl) Query(ctx context.Context, userID, text string) (string, error) {
	var (
		memories []storedMemory
		err      error
	)

	if l.embedder != nil {
		if vec, embErr := l.embedder.Embed(ctx, text); embErr == nil {
			memories, err = l.queryByVector(ctx, userID, vec)
		} else {
			// A degraded embedding provider must not take retrieval down
			// with it.
			memories, err = l.queryByFTS(ctx, userID, text)
		}
	} else {
		memories, err = l.queryByFTS(ctx, userID, text)
	}
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, "- ["+m.memType+"] "+m.content)
	}
	return strings.Join(lines, "\n"), nil
}

func (l *LongTermImpl) queryByVector(ctx context.Context, userID string, vec []float32) ([]storedMemory, error) {
	const q = `
		SELECT content, memory_type
		FROM   user_memories
		WHERE  user_id = $1
		  AND  embedding IS NOT NULL
		  AND  embedding <=> $2 < $3
		ORDER  BY embedding <=> $2
		LIMIT  $4`

	rows, err := l.pool.Query(ctx, q, userID, pgvector.NewVector(vec), maxDistance, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("long-term store: vector query: %w", err)
	}
	return collectMemories(rows)
}

func (l *LongTermImpl) queryByFTS(ctx context.Context, userID, text string) ([]storedMemory, error) {
	const q = `
		SELECT content, memory_type
		FROM   user_memories
		WHERE  user_id = $1
		  AND  to_tsvector('english', content) @@ plainto_tsquery('english', $2)
		ORDER  BY ts_rank(to_tsvector('english', content),
		                  plainto_tsquery('english', $2)) DESC,
		          importance DESC
		LIMIT  $3`

	rows, err := l.pool.Query(ctx, q, userID, text, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("long-term store: fts query: %w", err)
	}
	return collectMemories(rows)
}

// Save implements [memory.LongTermStore]. It stores a fact for the user,
// embedding it when an embedding provider is configured. An embedding failure
// downgrades the row to FTS-only retrieval rather than failing the save.
func (l *LongTermImpl) Save(ctx context.Context, userID, content string, memType memory.MemoryType, importance float64) error {
	var vec *pgvector.Vector
	if l.embedder != nil {
		if embedding, err := l.embedder.Embed(ctx, content); err == nil {
			v := pgvector.NewVector(embedding)
			vec = &v
		}
	}

	const q = `
		INSERT INTO user_memories (id, user_id, content, memory_type, importance, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := l.pool.Exec(ctx, q,
		uuid.NewString(),
		userID,
		content,
		string(memType),
		importance,
		vec,
	)
	if err != nil {
		return fmt.Errorf("long-term store: save: %w", err)
	}
	return nil
}

func collectMemories(rows pgx.Rows) ([]storedMemory, error) {
	memories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storedMemory, error) {
		var m storedMemory
		err := row.Scan(&m.content, &m.memType)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("long-term store: scan rows: %w", err)
	}
	return memories, nil
}
