// Package extract defines the extraction capabilities the pipeline calls into.
// Implementations must be safe for concurrent use and must not share mutable
// state between calls.
package extract

import (
	"context"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// Result is what a page extractor returns for one page.
type Result struct {
	Entries  []domain.Entry
	Messages []domain.Message
}

// PageExtractor turns one content page into entries. A returned error marks
// the whole page as failed; partial results are discarded.
type PageExtractor interface {
	ExtractPage(ctx context.Context, title, body string) (Result, error)
}

// RelationExtractor reads relation records from one thesaurus page.
type RelationExtractor interface {
	ExtractRelations(ctx context.Context, title, body string) ([]domain.RelationRecord, []domain.Message, error)
}

// PageFunc adapts a function to PageExtractor.
type PageFunc func(ctx context.Context, title, body string) (Result, error)

func (f PageFunc) ExtractPage(ctx context.Context, title, body string) (Result, error) {
	return f(ctx, title, body)
}

// RelationFunc adapts a function to RelationExtractor.
type RelationFunc func(ctx context.Context, title, body string) ([]domain.RelationRecord, []domain.Message, error)

func (f RelationFunc) ExtractRelations(ctx context.Context, title, body string) ([]domain.RelationRecord, []domain.Message, error) {
	return f(ctx, title, body)
}
