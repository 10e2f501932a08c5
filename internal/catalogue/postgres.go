package catalogue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// conceptsQuery reads the tag table. Ids are cast to text so numeric and
// string keys both work.
const conceptsQuery = `SELECT id::text, name FROM sub_concepts ORDER BY id`

// PostgresSource reads the catalogue from the sub_concepts table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

var _ Source = (*PostgresSource)(nil)

// NewPostgresSource connects to dsn and verifies the connection.
func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalogue: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalogue: ping: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

// NewPostgresSourceFromPool wraps an existing pool. The caller keeps
// ownership of pool.
func NewPostgresSourceFromPool(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Concepts queries every concept ordered by id.
func (s *PostgresSource) Concepts(ctx context.Context) ([]Concept, error) {
	rows, err := s.pool.Query(ctx, conceptsQuery)
	if err != nil {
		return nil, fmt.Errorf("catalogue: query concepts: %w", err)
	}
	concepts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Concept, error) {
		var c Concept
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("catalogue: scan concepts: %w", err)
	}
	if len(concepts) == 0 {
		return nil, ErrNoConcepts
	}
	return concepts, nil
}

// Ping checks the connection. It satisfies the health checker signature.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}
