// Package reference stores solved reference problems with their embeddings
// and finds the one closest to a new problem.
//
// The store lives in PostgreSQL with the pgvector extension; [Migrate]
// creates the table and an HNSW cosine index.
package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Problem is a solved reference problem.
type Problem struct {
	ID        string    `yaml:"id"`
	Text      string    `yaml:"text"`
	Steps     []string  `yaml:"steps"`
	Answer    string    `yaml:"answer"`
	Embedding []float32 `yaml:"-"`
}

// Match is a search hit. Distance is the cosine distance to the query.
type Match struct {
	Problem
	Distance float64
}

// Index is the storage side of a [Retriever].
type Index interface {
	Index(ctx context.Context, p Problem) error
	Nearest(ctx context.Context, embedding []float32, k int) ([]Match, error)
}

var _ Index = (*Store)(nil)

func ddl(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS reference_problems (
    id          TEXT         PRIMARY KEY,
    text        TEXT         NOT NULL,
    steps       TEXT[]       NOT NULL DEFAULT '{}',
    answer      TEXT         NOT NULL DEFAULT '',
    embedding   vector(%d)   NOT NULL,
    indexed_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reference_problems_embedding
    ON reference_problems USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// Migrate creates the reference table. It is idempotent. dimensions must
// match the embedding model; changing it later needs a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("reference migrate: invalid embedding dimensions %d", dimensions)
	}
	if _, err := pool.Exec(ctx, ddl(dimensions)); err != nil {
		return fmt.Errorf("reference migrate: %w", err)
	}
	return nil
}

// Store is the pgvector-backed reference index. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, registers pgvector types on every connection and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("reference store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("reference store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reference store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reference store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Index upserts p. The embedding must be set.
func (s *Store) Index(ctx context.Context, p Problem) error {
	if p.ID == "" {
		return errors.New("reference store: index: empty id")
	}
	if len(p.Embedding) == 0 {
		return fmt.Errorf("reference store: index %s: missing embedding", p.ID)
	}
	steps := p.Steps
	if steps == nil {
		steps = []string{}
	}

	const q = `
		INSERT INTO reference_problems (id, text, steps, answer, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    text       = EXCLUDED.text,
		    steps      = EXCLUDED.steps,
		    answer     = EXCLUDED.answer,
		    embedding  = EXCLUDED.embedding,
		    indexed_at = now()`

	if _, err := s.pool.Exec(ctx, q, p.ID, p.Text, steps, p.Answer, pgvector.NewVector(p.Embedding)); err != nil {
		return fmt.Errorf("reference store: index %s: %w", p.ID, err)
	}
	return nil
}

// Nearest returns up to k problems ordered by ascending cosine distance.
func (s *Store) Nearest(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	const q = `
		SELECT id, text, steps, answer, embedding <=> $1 AS distance
		FROM   reference_problems
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("reference store: nearest: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.ID, &m.Text, &m.Steps, &m.Answer, &m.Distance)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("reference store: scan rows: %w", err)
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// Ping checks the connection pool.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }
