// Package corpus implements the two corpus passes: a single forward indexing
// pass from the dump into the page index, and filtered walks over the index.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/heartmarshall/wiktlex/internal/adapter/dump"
	"github.com/heartmarshall/wiktlex/internal/adapter/sqlite/pageindex"
	"github.com/heartmarshall/wiktlex/internal/domain"
)

// PageReader yields pages from a dump in source order.
type PageReader interface {
	Next() (domain.Page, error)
	SiteInfo() dump.SiteInfo
	Close() error
}

// Opener opens the dump at path.
type Opener func(path string) (PageReader, error)

// OpenDump is the default Opener.
func OpenDump(path string) (PageReader, error) {
	return dump.Open(path)
}

// Config configures an Engine.
type Config struct {
	DumpPath string
	// SaveNamespaces limits which namespaces are copied into the index.
	// Empty means all.
	SaveNamespaces []string
	BatchSize      int
	// LogEvery controls how often indexing progress is logged, in pages.
	LogEvery int
}

// IndexResult summarizes one indexing pass.
type IndexResult struct {
	Pages    int
	Saved    int
	Duration time.Duration
}

// Engine owns the page index for one dump.
type Engine struct {
	store *pageindex.Store
	open  Opener
	cfg   Config
	log   *slog.Logger
}

// New creates an Engine. A nil opener uses OpenDump.
func New(store *pageindex.Store, open Opener, cfg Config, logger *slog.Logger) *Engine {
	if open == nil {
		open = OpenDump
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 100_000
	}
	return &Engine{
		store: store,
		open:  open,
		cfg:   cfg,
		log:   logger.With("component", "corpus"),
	}
}

// Index runs the indexing pass. The index is marked complete only after the
// last page is stored; an interrupted pass leaves it incomplete and a later
// run must index again.
func (e *Engine) Index(ctx context.Context) (IndexResult, error) {
	start := time.Now()
	var res IndexResult

	if e.cfg.DumpPath == "" {
		return res, fmt.Errorf("corpus: %w: no dump path configured", domain.ErrCorpusUnreadable)
	}

	r, err := e.open(e.cfg.DumpPath)
	if err != nil {
		return res, fmt.Errorf("corpus: open dump: %w", err)
	}
	defer r.Close()

	if err := e.store.Reset(ctx); err != nil {
		return res, fmt.Errorf("corpus: reset index: %w", err)
	}

	e.log.Info("indexing started", slog.String("dump", e.cfg.DumpPath))

	var (
		batch      = make([]domain.Page, 0, e.cfg.BatchSize)
		namespaces map[int]string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.PutPages(ctx, batch); err != nil {
			return fmt.Errorf("corpus: store pages: %w", err)
		}
		res.Saved += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("corpus: indexing interrupted after %d pages: %w", res.Pages, err)
		}

		page, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("corpus: read dump: %w", err)
		}

		if namespaces == nil {
			namespaces, err = e.storeNamespaces(ctx, r.SiteInfo())
			if err != nil {
				return res, err
			}
		}

		res.Pages++
		if res.Pages%e.cfg.LogEvery == 0 {
			e.log.Info("indexing progress",
				slog.Int("pages", res.Pages),
				slog.Int("saved", res.Saved+len(batch)),
				slog.Duration("elapsed", time.Since(start)),
			)
		}

		if !e.keep(page, namespaces) {
			continue
		}
		batch = append(batch, page)
		if len(batch) >= e.cfg.BatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if namespaces == nil {
		if _, err := e.storeNamespaces(ctx, r.SiteInfo()); err != nil {
			return res, err
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	if err := e.store.MarkComplete(ctx, e.cfg.DumpPath, res.Saved); err != nil {
		return res, fmt.Errorf("corpus: mark complete: %w", err)
	}

	res.Duration = time.Since(start)
	e.log.Info("indexing finished",
		slog.Int("pages", res.Pages),
		slog.Int("saved", res.Saved),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func (e *Engine) storeNamespaces(ctx context.Context, si dump.SiteInfo) (map[int]string, error) {
	names := make(map[int]string, len(si.Namespaces)+1)
	names[domain.MainNamespaceID] = domain.MainNamespace

	nss := make([]domain.Namespace, 0, len(si.Namespaces)+1)
	for _, ns := range si.Namespaces {
		names[ns.ID] = ns.Name
	}
	for id, name := range names {
		nss = append(nss, domain.Namespace{ID: id, Name: name})
	}
	if err := e.store.PutNamespaces(ctx, nss); err != nil {
		return nil, fmt.Errorf("corpus: store namespaces: %w", err)
	}
	return names, nil
}

func (e *Engine) keep(p domain.Page, namespaces map[int]string) bool {
	if len(e.cfg.SaveNamespaces) == 0 {
		return true
	}
	return slices.Contains(e.cfg.SaveNamespaces, namespaces[p.Namespace])
}

// Indexed reports whether a complete index is available.
func (e *Engine) Indexed(ctx context.Context) (bool, error) {
	return e.store.Complete(ctx)
}

// Walk calls fn for every indexed page selected by q. It fails with
// domain.ErrIndexIncomplete when no complete indexing pass is recorded.
func (e *Engine) Walk(ctx context.Context, q domain.PageQuery, fn func(domain.Page) error) error {
	f, err := e.filter(ctx, q)
	if err != nil {
		return err
	}
	return e.store.Walk(ctx, f, fn)
}

// Count returns the number of pages Walk would visit for q.
func (e *Engine) Count(ctx context.Context, q domain.PageQuery) (int, error) {
	f, err := e.filter(ctx, q)
	if err != nil {
		return 0, err
	}
	return e.store.Count(ctx, f)
}

// Page returns one indexed page by title.
func (e *Engine) Page(ctx context.Context, title string) (domain.Page, error) {
	return e.store.Page(ctx, title)
}

func (e *Engine) filter(ctx context.Context, q domain.PageQuery) (pageindex.Filter, error) {
	ok, err := e.store.Complete(ctx)
	if err != nil {
		return pageindex.Filter{}, fmt.Errorf("corpus: %w", err)
	}
	if !ok {
		return pageindex.Filter{}, fmt.Errorf("corpus: %w", domain.ErrIndexIncomplete)
	}

	f := pageindex.Filter{IncludeRedirects: q.IncludeRedirects}
	if len(q.Namespaces) == 0 {
		return f, nil
	}

	nss, err := e.store.Namespaces(ctx)
	if err != nil {
		return pageindex.Filter{}, fmt.Errorf("corpus: %w", err)
	}

	f.NamespaceIDs = []int{}
	for _, name := range q.Namespaces {
		if name == domain.MainNamespace {
			f.NamespaceIDs = append(f.NamespaceIDs, domain.MainNamespaceID)
			continue
		}
		for _, ns := range nss {
			if ns.Name == name {
				f.NamespaceIDs = append(f.NamespaceIDs, ns.ID)
			}
		}
	}
	return f, nil
}
