// Package dispatch routes one corpus page to the page extractor and turns
// whatever happens into a uniform (entries, stats) result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/internal/extract"
)

// Message texts produced by the dispatcher. They are stable so the report
// can group them.
const (
	MsgExtractorFailed  = "page extraction failed"
	MsgExtractorPanic   = "page extraction panicked"
	MsgSlowPage         = "slow page extraction"
	MsgRedirectNoTarget = "redirect without target"
)

// Policy is resolved once per run and passed in explicitly.
type Policy struct {
	// NamespaceDenylist holds title prefixes (text before the first ':')
	// whose pages are skipped.
	NamespaceDenylist []string
	// SuffixDenylist holds subpage names ("translations" for "dog/translations")
	// whose pages are skipped.
	SuffixDenylist []string
	// SlowThreshold is the extraction time above which a warning is
	// recorded. Zero disables the check.
	SlowThreshold time.Duration
	// LanguageCodes restricts emitted entries to these codes. Empty keeps all.
	LanguageCodes []string
}

// RelationLookup is read-only access to the cross-reference index frozen
// before the main pass starts.
type RelationLookup interface {
	Records(k domain.XRefKey) []domain.RelationRecord
}

// Result is the outcome for exactly one page. Entries may be empty; Stats is
// always present.
type Result struct {
	Entries []domain.Entry
	Stats   domain.PageStats
}

// Service dispatches pages. It holds only read-only state after construction
// and is safe for concurrent use.
type Service struct {
	log        *slog.Logger
	extractor  extract.PageExtractor
	slow       time.Duration
	nsDeny     map[string]struct{}
	suffixDeny map[string]struct{}
	langs      map[string]struct{}
	now        func() time.Time
}

// NewService creates a new dispatch service.
func NewService(log *slog.Logger, extractor extract.PageExtractor, policy Policy) *Service {
	return &Service{
		log:        log.With("service", "dispatch"),
		extractor:  extractor,
		slow:       policy.SlowThreshold,
		nsDeny:     toSet(policy.NamespaceDenylist),
		suffixDeny: toSet(policy.SuffixDenylist),
		langs:      toSet(policy.LanguageCodes),
		now:        time.Now,
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// Dispatch processes one page. It never returns an error: extractor failures
// and panics become a single diagnostic in Stats. When rel is non-nil,
// thesaurus linkages for every extracted entry are attached from it.
func (s *Service) Dispatch(ctx context.Context, page domain.Page, rel RelationLookup) Result {
	title := domain.NormalizeTitle(page.Title)
	res := Result{Stats: domain.PageStats{Title: title}}

	if reason := s.skipReason(title); reason != "" {
		res.Stats.SkipReason = reason
		return res
	}

	if page.IsRedirect() {
		if page.RedirectTo == "" {
			res.Stats.Add(domain.Message{Kind: domain.MessageWarning, Title: title, Text: MsgRedirectNoTarget})
			return res
		}
		res.Entries = []domain.Entry{domain.NewRedirectEntry(title, domain.NormalizeTitle(page.RedirectTo))}
		res.Stats.Inc(domain.CounterRedirects, 1)
		return res
	}

	if ctx.Err() != nil {
		res.Stats.SkipReason = domain.SkipCancelled
		return res
	}

	start := s.now()
	out, trace, err := s.extract(ctx, title, page.Body)
	elapsed := s.now().Sub(start)

	if err != nil && trace == "" && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		res.Stats.SkipReason = domain.SkipCancelled
		return res
	}

	res.Stats.Slow = s.slow > 0 && elapsed > s.slow
	if res.Stats.Slow {
		res.Stats.Add(domain.Message{
			Kind:   domain.MessageWarning,
			Title:  title,
			Text:   MsgSlowPage,
			Detail: elapsed.Round(time.Millisecond).String(),
		})
		s.log.WarnContext(ctx, "slow page", slog.String("title", title), slog.Duration("elapsed", elapsed))
	}

	if err != nil {
		text := MsgExtractorFailed
		if trace != "" {
			text = MsgExtractorPanic
		}
		res.Stats.Failed = true
		res.Stats.Add(domain.Message{
			Kind:   domain.MessageError,
			Title:  title,
			Text:   text,
			Detail: joinDetail(err.Error(), trace),
		})
		s.log.WarnContext(ctx, "page failed", slog.String("title", title), slog.String("error", err.Error()))
		return res
	}

	for _, m := range out.Messages {
		if m.Title == "" {
			m.Title = title
		}
		res.Stats.Add(m)
	}

	for _, e := range out.Entries {
		if len(s.langs) > 0 {
			if _, ok := s.langs[e.LangCode]; !ok {
				res.Stats.Inc(domain.CounterEntriesFilteredLanguage, 1)
				continue
			}
		}
		res.Entries = append(res.Entries, e)
	}
	res.Stats.Inc(domain.CounterEntriesExtracted, len(res.Entries))

	if rel != nil {
		injected := 0
		for i := range res.Entries {
			injected += injectLinkages(&res.Entries[i], rel)
		}
		if injected > 0 {
			res.Stats.Inc(domain.CounterLinkagesInjected, injected)
		}
	}

	return res
}

// extract calls the extractor and converts a panic into an error.
func (s *Service) extract(ctx context.Context, title, body string) (res extract.Result, trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace = string(debug.Stack())
			err = fmt.Errorf("%w: %v", domain.ErrExtraction, r)
		}
	}()

	res, err = s.extractor.ExtractPage(ctx, title, body)
	if err != nil {
		err = &domain.PageError{Title: title, Err: err}
	}
	return res, "", err
}

func (s *Service) skipReason(title string) string {
	if title == "" {
		return domain.SkipEmpty
	}
	if prefix := domain.TitlePrefix(title); prefix != "" {
		if _, ok := s.nsDeny[prefix]; ok {
			return domain.SkipNamespace
		}
	}
	if len(s.suffixDeny) > 0 {
		segments := strings.Split(title, "/")
		for _, seg := range segments[1:] {
			if _, ok := s.suffixDeny[seg]; ok {
				return domain.SkipSuffix
			}
		}
	}
	return ""
}

func joinDetail(msg, trace string) string {
	if trace == "" {
		return msg
	}
	return msg + "\n" + trace
}
