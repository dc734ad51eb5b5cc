//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/heartmarshall/wiktlex/internal/adapter/postgres"
	"github.com/heartmarshall/wiktlex/internal/adapter/postgres/testhelper"
)

const insertRun = `INSERT INTO lex_runs (id, dump_path) VALUES ($1, $2)`

func TestRunInTx_Commit(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	runID := uuid.New()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		_, err := q.Exec(ctx, insertRun, runID, "commit.xml")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx returned error: %v", err)
	}

	if !testhelper.RunExists(t, pool, runID) {
		t.Fatal("expected run to exist after committed transaction")
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	runID := uuid.New()
	sentinel := errors.New("sink closed")

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		if _, execErr := q.Exec(ctx, insertRun, runID, "rollback.xml"); execErr != nil {
			t.Fatalf("insert inside tx failed: %v", execErr)
		}
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got: %v", err)
	}
	if testhelper.RunExists(t, pool, runID) {
		t.Fatal("expected run NOT to exist after rolled-back transaction")
	}
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	runID := uuid.New()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic to be re-raised")
		}
		if r != "test panic" {
			t.Fatalf("expected panic value %q, got %v", "test panic", r)
		}
		if testhelper.RunExists(t, pool, runID) {
			t.Fatal("expected run NOT to exist after panic-rolled-back transaction")
		}
	}()

	_ = tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		if _, err := q.Exec(ctx, insertRun, runID, "panic.xml"); err != nil {
			t.Fatalf("insert inside tx failed: %v", err)
		}
		panic("test panic")
	})
}

func TestRunInTx_QuerierFromCtx_UsesTx(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	runID := uuid.New()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		if _, err := q.Exec(ctx, insertRun, runID, "ctx.xml"); err != nil {
			return err
		}

		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM lex_runs WHERE id = $1)`, runID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			t.Fatal("expected run to be visible within the transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx returned error: %v", err)
	}
	if !testhelper.RunExists(t, pool, runID) {
		t.Fatal("expected run to exist after committed transaction")
	}
}

func TestRunInTx_NestedCallJoinsOuter(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	outerID, innerID := uuid.New(), uuid.New()
	sentinel := errors.New("abort")

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		if _, err := q.Exec(ctx, insertRun, outerID, "outer.xml"); err != nil {
			return err
		}
		if err := tm.RunInTx(ctx, func(ctx context.Context) error {
			_, err := postgres.QuerierFromCtx(ctx, pool).Exec(ctx, insertRun, innerID, "inner.xml")
			return err
		}); err != nil {
			return err
		}
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got: %v", err)
	}
	if testhelper.RunExists(t, pool, outerID) || testhelper.RunExists(t, pool, innerID) {
		t.Fatal("nested call should roll back with the outer transaction")
	}
}
