package catalogue_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/odab/internal/catalogue"
)

// testDSN skips the test unless ODAB_TEST_POSTGRES_DSN is set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("ODAB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ODAB_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func TestPostgresSource_Concepts(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, q := range []string{
		`DROP TABLE IF EXISTS sub_concepts`,
		`CREATE TABLE sub_concepts (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`,
		`INSERT INTO sub_concepts (id, name) VALUES (12, 'Fractions'), (7, 'Linear equations')`,
	} {
		if _, err := pool.Exec(ctx, q); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}

	src := catalogue.NewPostgresSourceFromPool(pool)
	if err := src.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	got, err := src.Concepts(ctx)
	if err != nil {
		t.Fatalf("Concepts: %v", err)
	}
	want := []catalogue.Concept{{ID: "7", Name: "Linear equations"}, {ID: "12", Name: "Fractions"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Concepts = %+v, want %+v", got, want)
	}
}
