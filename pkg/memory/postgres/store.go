package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/nexuslabs/nexus/pkg/memory"
	"github.com/nexuslabs/nexus/pkg/provider/embeddings"
)

// Compile-time interface checks.
var (
	_ memory.ShortTermStore = (*ShortTermImpl)(nil)
	_ memory.LongTermStore  = (*LongTermImpl)(nil)
)

// Store is the central PostgreSQL-backed memory store for Nexus. It holds a
// single [pgxpool.Pool] and exposes the two-layer memory architecture:
//
//   - [Store.ShortTerm] returns a [ShortTermImpl] implementing [memory.ShortTermStore]
//   - [Store.LongTerm] returns a [LongTermImpl] implementing [memory.LongTermStore]
//
// All operations are safe for concurrent use.
type Store struct {
	pool      *pgxpool.Pool
	shortTerm *ShortTermImpl
	longTerm  *LongTermImpl
}

// Option customizes a Store created by [NewStore].
type Option func(*storeConfig)

type storeConfig struct {
	embedder embeddings.Provider
	maxTurns int
	ttl      time.Duration
}

// WithEmbedder sets the embedding provider used for long-term memory
// similarity search. Without one the long-term store falls back to
// full-text search.
func WithEmbedder(e embeddings.Provider) Option {
	return func(c *storeConfig) { c.embedder = e }
}

// WithMaxTurns overrides the per-user conversation window size
// (default [memory.DefaultMaxTurns]).
func WithMaxTurns(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.maxTurns = n
		}
	}
}

// WithTTL overrides how long conversation turns stay live
// (default [memory.DefaultTTL]).
func WithTTL(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the configured
// embedding model (e.g., 1536 for OpenAI text-embedding-3-small). Changing
// this value after the first migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int, opts ...Option) (*Store, error) {
	sc := storeConfig{
		maxTurns: memory.DefaultMaxTurns,
		ttl:      memory.DefaultTTL,
	}
	for _, opt := range opts {
		opt(&sc)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:      pool,
		shortTerm: &ShortTermImpl{pool: pool, maxTurns: sc.maxTurns, ttl: sc.ttl},
		longTerm:  &LongTermImpl{pool: pool, embedder: sc.embedder},
	}, nil
}

// ShortTerm returns the conversation-window implementation which satisfies
// [memory.ShortTermStore].
func (s *Store) ShortTerm() *ShortTermImpl { return s.shortTerm }

// LongTerm returns the user-facts implementation which satisfies
// [memory.LongTermStore].
func (s *Store) LongTerm() *LongTermImpl { return s.longTerm }

// Ping verifies database connectivity. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
