// Package postgres provides a PostgreSQL-backed implementation of the
// two-layer Nexus memory architecture (short-term conversation window,
// long-term user facts).
//
// Both layers share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS. Long-term retrieval uses
// vector similarity when an embedding provider is configured and falls back
// to full-text search otherwise.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536, postgres.WithEmbedder(emb))
//	if err != nil { … }
//
//	// Short-term
//	_ = store.ShortTerm().Append(ctx, userID, "user", "what's the price of BTC?")
//
//	// Long-term
//	_ = store.LongTerm().Save(ctx, userID, "holds 2 BTC", memory.TypePortfolio, 0.8)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Short-term DDL — conversation window
// ─────────────────────────────────────────────────────────────────────────────

const ddlConversationTurns = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id         BIGSERIAL    PRIMARY KEY,
    user_id    TEXT         NOT NULL,
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_user_id
    ON conversation_turns (user_id);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_user_created
    ON conversation_turns (user_id, created_at);
`

// ddlUserMemories returns the long-term DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlUserMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS user_memories (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    memory_type TEXT         NOT NULL,
    importance  DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_user_memories_user_id
    ON user_memories (user_id);

CREATE INDEX IF NOT EXISTS idx_user_memories_embedding
    ON user_memories USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_user_memories_fts
    ON user_memories USING GIN (to_tsvector('english', content));
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your deployment
// (e.g., 1536 for OpenAI text-embedding-3-small, 768 for nomic-embed-text).
// Changing this value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlConversationTurns,
		ddlUserMemories(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
