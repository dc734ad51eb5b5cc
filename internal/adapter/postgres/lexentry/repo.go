// Package lexentry stores emitted lexical entries in PostgreSQL, grouped by
// pipeline run.
package lexentry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/wiktlex/internal/adapter/postgres"
	"github.com/heartmarshall/wiktlex/internal/domain"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline run recorded in lex_runs.
type Run struct {
	ID         uuid.UUID
	DumpPath   string
	Status     string
	Entries    int
	StartedAt  time.Time
	FinishedAt *time.Time
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides access to lex_runs and lex_entries.
type Repo struct {
	pool *pgxpool.Pool
	txm  *postgres.TxManager
}

// New creates a new lexentry repository.
func New(pool *pgxpool.Pool, txm *postgres.TxManager) *Repo {
	return &Repo{pool: pool, txm: txm}
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// CreateRun registers a new running run.
func (r *Repo) CreateRun(ctx context.Context, id uuid.UUID, dumpPath string) error {
	query, args, err := psql.Insert("lex_runs").
		Columns("id", "dump_path", "status").
		Values(id, dumpPath, StatusRunning).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "run", id.String())
	}
	return nil
}

// FinishRun records the final status of a run.
func (r *Repo) FinishRun(ctx context.Context, id uuid.UUID, status string) error {
	return r.updateRun(ctx, id, psql.Update("lex_runs").
		Set("status", status).
		Set("finished_at", sq.Expr("now()")))
}

func (r *Repo) updateRun(ctx context.Context, id uuid.UUID, b sq.UpdateBuilder) error {
	query, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "run", id.String())
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "run", id.String())
	}
	return nil
}

// GetRun returns the run with id.
func (r *Repo) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	query, args, err := psql.Select("id", "dump_path", "status", "entries", "started_at", "finished_at").
		From("lex_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Run{}, fmt.Errorf("build query: %w", err)
	}

	var run Run
	q := postgres.QuerierFromCtx(ctx, r.pool)
	err = q.QueryRow(ctx, query, args...).Scan(
		&run.ID, &run.DumpPath, &run.Status, &run.Entries, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return Run{}, postgres.MapError(err, "run", id.String())
	}
	return run, nil
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

// BulkInsert stores entries for runID using pgx.Batch. Row ids are derived
// from the run and the entry content, so re-sending an entry is a no-op via
// ON CONFLICT DO NOTHING. Returns the number of actually inserted rows.
func (r *Repo) BulkInsert(ctx context.Context, runID uuid.UUID, entries []domain.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("marshal entry %q: %w", e.Word+e.Title, err)
		}
		batch.Queue(
			`INSERT INTO lex_entries (id, run_id, word, title, redirect, lang, lang_code, pos, source, data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO NOTHING`,
			uuid.NewSHA1(runID, data), runID,
			nullable(e.Word), nullable(e.Title), nullable(e.Redirect),
			nullable(e.Lang), nullable(e.LangCode), e.POS,
			sourceOf(e), data,
		)
	}

	return r.sendBatchExec(ctx, batch)
}

// AppendEntries inserts entries and bumps the run's entry counter in one
// transaction.
func (r *Repo) AppendEntries(ctx context.Context, runID uuid.UUID, entries []domain.Entry) (int, error) {
	var inserted int
	err := r.txm.RunInTx(ctx, func(ctx context.Context) error {
		n, err := r.BulkInsert(ctx, runID, entries)
		if err != nil {
			return err
		}
		inserted = n
		return r.updateRun(ctx, runID, psql.Update("lex_runs").
			Set("entries", sq.Expr("entries + ?", n)))
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountByRun returns the number of entries stored for runID.
func (r *Repo) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("lex_entries").
		Where(sq.Eq{"run_id": runID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	q := postgres.QuerierFromCtx(ctx, r.pool)
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "run", runID.String())
	}
	return n, nil
}

// FindByWord returns the entries of runID whose word equals word, optionally
// restricted to one language code.
func (r *Repo) FindByWord(ctx context.Context, runID uuid.UUID, word, langCode string) ([]domain.Entry, error) {
	where := sq.Eq{"run_id": runID, "word": word}
	if langCode != "" {
		where["lang_code"] = langCode
	}
	query, args, err := psql.Select("data").
		From("lex_entries").
		Where(where).
		OrderBy("lang_code", "pos", "created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "entry", word)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e domain.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// sendBatchExec sends a pgx.Batch and counts affected rows from Exec results.
func (r *Repo) sendBatchExec(ctx context.Context, batch *pgx.Batch) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	results := q.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int
	for range batch.Len() {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch exec: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sourceOf(e domain.Entry) string {
	if e.Source != "" {
		return e.Source
	}
	return domain.SourcePage
}
