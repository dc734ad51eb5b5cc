package testhelper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedRun creates a running lex_runs row and returns its id.
func SeedRun(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO lex_runs (id, dump_path) VALUES ($1, $2)`,
		id, "test-"+id.String()[:8]+".xml",
	)
	if err != nil {
		t.Fatalf("SeedRun: %v", err)
	}
	return id
}

// RunExists reports whether a lex_runs row with id exists.
func RunExists(t *testing.T, pool *pgxpool.Pool, id uuid.UUID) bool {
	t.Helper()

	var exists bool
	err := pool.QueryRow(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM lex_runs WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("RunExists: %v", err)
	}
	return exists
}
