// Package pageindex is the durable, randomly-accessible page index built by
// the indexing pass. It is backed by a single SQLite file.
package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/heartmarshall/wiktlex/internal/adapter/sqlite/pageindex/migrations"
	"github.com/heartmarshall/wiktlex/internal/domain"
)

const (
	metaComplete = "complete"
	metaPages    = "pages"
	metaSource   = "source"
)

var pageColumns = []string{"title", "namespace", "model", "redirect_to", "body"}

// Filter selects pages for Walk and Count. A nil NamespaceIDs matches every
// namespace.
type Filter struct {
	NamespaceIDs     []int
	IncludeRedirects bool
}

// Store is the SQLite-backed page index.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the index at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("pageindex: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("pageindex: open: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pageindex: goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pageindex: migrate: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Reset clears pages, namespaces and the completeness marker.
func (s *Store) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"pages", "namespaces", "index_meta"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// PutNamespaces replaces the namespace table.
func (s *Store) PutNamespaces(ctx context.Context, namespaces []domain.Namespace) error {
	if len(namespaces) == 0 {
		return nil
	}

	q := sq.Insert("namespaces").Options("OR REPLACE").Columns("id", "name")
	for _, ns := range namespaces {
		q = q.Values(ns.ID, ns.Name)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build namespaces insert: %w", err)
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
}

// Namespaces returns the stored namespace table ordered by id.
func (s *Store) Namespaces(ctx context.Context) ([]domain.Namespace, error) {
	query, args, err := sq.Select("id", "name").From("namespaces").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("pageindex: build namespaces query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pageindex: namespaces: %w", err)
	}
	defer rows.Close()

	var out []domain.Namespace
	for rows.Next() {
		var ns domain.Namespace
		if err := rows.Scan(&ns.ID, &ns.Name); err != nil {
			return nil, fmt.Errorf("pageindex: scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// PutPages upserts a batch of pages in one transaction.
func (s *Store) PutPages(ctx context.Context, pages []domain.Page) error {
	if len(pages) == 0 {
		return nil
	}

	q := sq.Insert("pages").Options("OR REPLACE").Columns(pageColumns...)
	for _, p := range pages {
		q = q.Values(p.Title, p.Namespace, string(p.Model), p.RedirectTo, p.Body)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build pages insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %d pages: %w", len(pages), err)
		}
		return nil
	})
}

// MarkComplete records that the indexing pass finished over source.
func (s *Store) MarkComplete(ctx context.Context, source string, pages int) error {
	q := sq.Insert("index_meta").Options("OR REPLACE").Columns("key", "value").
		Values(metaComplete, "1").
		Values(metaPages, strconv.Itoa(pages)).
		Values(metaSource, source)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build meta insert: %w", err)
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
}

// Complete reports whether a previous indexing pass ran to completion.
func (s *Store) Complete(ctx context.Context) (bool, error) {
	v, err := s.meta(ctx, metaComplete)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// Source returns the dump path recorded by MarkComplete.
func (s *Store) Source(ctx context.Context) (string, error) {
	return s.meta(ctx, metaSource)
}

func (s *Store) meta(ctx context.Context, key string) (string, error) {
	query, args, err := sq.Select("value").From("index_meta").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", fmt.Errorf("pageindex: build meta query: %w", err)
	}

	var v string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("pageindex: meta %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("pageindex: meta %q: %w", key, err)
	}
	return v, nil
}

// Page returns one page by exact title.
func (s *Store) Page(ctx context.Context, title string) (domain.Page, error) {
	query, args, err := sq.Select(pageColumns...).From("pages").Where(sq.Eq{"title": title}).ToSql()
	if err != nil {
		return domain.Page{}, fmt.Errorf("pageindex: build page query: %w", err)
	}

	p, err := scanPage(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Page{}, fmt.Errorf("pageindex: page %q: %w", title, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Page{}, fmt.Errorf("pageindex: page %q: %w", title, err)
	}
	return p, nil
}

// Count returns the number of pages matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	query, args, err := applyFilter(sq.Select("COUNT(*)").From("pages"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("pageindex: build count query: %w", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("pageindex: count: %w", err)
	}
	return n, nil
}

// Walk calls fn for every page matching f in title order. A non-nil error
// from fn stops the walk and is returned unwrapped.
func (s *Store) Walk(ctx context.Context, f Filter, fn func(domain.Page) error) error {
	query, args, err := applyFilter(sq.Select(pageColumns...).From("pages"), f).OrderBy("title").ToSql()
	if err != nil {
		return fmt.Errorf("pageindex: build walk query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pageindex: walk: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return fmt.Errorf("pageindex: scan page: %w", err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pageindex: walk: %w", err)
	}
	return nil
}

func applyFilter(q sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.NamespaceIDs != nil {
		q = q.Where(sq.Eq{"namespace": f.NamespaceIDs})
	}
	if !f.IncludeRedirects {
		q = q.Where(sq.NotEq{"model": string(domain.ContentModelRedirect)})
	}
	return q
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(row scanner) (domain.Page, error) {
	var (
		p     domain.Page
		model string
	)
	if err := row.Scan(&p.Title, &p.Namespace, &model, &p.RedirectTo, &p.Body); err != nil {
		return domain.Page{}, err
	}
	p.Model = domain.ContentModel(model)
	return p, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pageindex: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("pageindex: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pageindex: commit: %w", err)
	}
	return nil
}
