// Package xref builds the cross-reference index from thesaurus pages in a
// dedicated pass that runs before the main pass.
package xref

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/internal/extract"
)

// MsgRelationsFailed is recorded when a thesaurus page cannot be read.
const MsgRelationsFailed = "thesaurus extraction failed"

// PageWalker visits indexed pages.
type PageWalker interface {
	Walk(ctx context.Context, q domain.PageQuery, fn func(domain.Page) error) error
}

// Index maps (word, lang) to relation records. It is read-only once Build
// returns and may be shared between goroutines.
type Index struct {
	keys    []domain.XRefKey
	records map[domain.XRefKey][]domain.RelationRecord
	total   int
}

func newIndex() *Index {
	return &Index{records: make(map[domain.XRefKey][]domain.RelationRecord)}
}

func (ix *Index) add(r domain.RelationRecord) {
	k := r.Key()
	if _, ok := ix.records[k]; !ok {
		ix.keys = append(ix.keys, k)
	}
	ix.records[k] = append(ix.records[k], r)
	ix.total++
}

// Keys returns the keys in first-seen order.
func (ix *Index) Keys() []domain.XRefKey {
	return append([]domain.XRefKey(nil), ix.keys...)
}

// Records returns the records of k in insertion order. The slice must not be
// modified.
func (ix *Index) Records(k domain.XRefKey) []domain.RelationRecord {
	return ix.records[k]
}

// Len returns the number of keys.
func (ix *Index) Len() int { return len(ix.keys) }

// Total returns the number of records.
func (ix *Index) Total() int { return ix.total }

// Service runs the cross-reference pass.
type Service struct {
	log       *slog.Logger
	extractor extract.RelationExtractor
	namespace string
}

// NewService creates a cross-reference service reading pages of namespace.
func NewService(log *slog.Logger, extractor extract.RelationExtractor, namespace string) *Service {
	return &Service{
		log:       log.With("service", "xref"),
		extractor: extractor,
		namespace: namespace,
	}
}

// Build walks every thesaurus page once, sequentially. A failing page is
// recorded in the returned stats; a failing walk aborts the pass.
func (s *Service) Build(ctx context.Context, corpus PageWalker) (*Index, domain.PageStats, error) {
	start := time.Now()
	ix := newIndex()
	var stats domain.PageStats

	q := domain.PageQuery{Namespaces: []string{s.namespace}}
	err := corpus.Walk(ctx, q, func(p domain.Page) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.page(ctx, ix, &stats, p)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("xref: walk %s pages: %w", s.namespace, err)
	}

	s.log.InfoContext(ctx, "cross-reference index built",
		slog.Int("pages", stats.Counters[domain.CounterThesaurusPages]),
		slog.Int("keys", ix.Len()),
		slog.Int("records", ix.Total()),
		slog.Duration("duration", time.Since(start)),
	)
	return ix, stats, nil
}

func (s *Service) page(ctx context.Context, ix *Index, stats *domain.PageStats, p domain.Page) {
	title := domain.NormalizeTitle(p.Title)
	stats.Inc(domain.CounterThesaurusPages, 1)

	records, msgs, err := s.extract(ctx, title, p.Body)
	if err != nil {
		stats.Inc(domain.CounterThesaurusFailed, 1)
		stats.Add(domain.Message{
			Kind:   domain.MessageError,
			Title:  title,
			Text:   MsgRelationsFailed,
			Detail: err.Error(),
		})
		s.log.WarnContext(ctx, "thesaurus page failed", slog.String("title", title), slog.String("error", err.Error()))
		return
	}

	for _, m := range msgs {
		if m.Title == "" {
			m.Title = title
		}
		stats.Add(m)
	}
	for _, r := range records {
		if r.Word == "" || r.Lang == "" || r.Target == "" {
			stats.Add(domain.Message{
				Kind:  domain.MessageDebug,
				Title: title,
				Text:  "incomplete relation record",
			})
			continue
		}
		if r.Source == "" {
			r.Source = title
		}
		ix.add(r)
		stats.Inc(domain.CounterRelationRecords, 1)
	}
}

func (s *Service) extract(ctx context.Context, title, body string) (records []domain.RelationRecord, msgs []domain.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v\n%s", domain.ErrExtraction, r, debug.Stack())
		}
	}()
	return s.extractor.ExtractRelations(ctx, title, body)
}
