// Package synth emits minimal entries for words that only appear in the
// cross-reference index. It runs once, after the main pass has drained.
package synth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// Message texts produced by the synthesizer.
const (
	MsgUnknownLanguage = "unknown language name"
	MsgUnknownRelation = "unknown relation type"
	MsgMissingPOS      = "relation records without part of speech"
)

type languages interface {
	Code(name string) (string, bool)
}

// RelationIndex is the read-only cross-reference index.
type RelationIndex interface {
	Keys() []domain.XRefKey
	Records(k domain.XRefKey) []domain.RelationRecord
}

// EmitFunc receives every synthetic entry. A non-nil error stops synthesis.
type EmitFunc func(ctx context.Context, e domain.Entry) error

// Service builds synthetic entries.
type Service struct {
	log     *slog.Logger
	langs   languages
	allowed map[string]struct{}
}

// NewService creates a synthesizer. languageCodes restricts output to these
// codes; empty keeps all.
func NewService(log *slog.Logger, langs languages, languageCodes []string) *Service {
	allowed := make(map[string]struct{}, len(languageCodes))
	for _, c := range languageCodes {
		allowed[c] = struct{}{}
	}
	return &Service{
		log:     log.With("service", "synth"),
		langs:   langs,
		allowed: allowed,
	}
}

// Synthesize walks ix in key order and emits one entry for every
// (word, lang, pos) that is not in seen. seen must be final; it is only read.
func (s *Service) Synthesize(ctx context.Context, ix RelationIndex, seen domain.KeySet, emit EmitFunc) (domain.PageStats, error) {
	var stats domain.PageStats

	for _, k := range ix.Keys() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		groups := partitionByPOS(ix.Records(k))
		pending := make([]posGroup, 0, len(groups))
		for _, g := range groups {
			if g.pos == "" {
				stats.Inc(domain.CounterSynthRecordsNoPOS, len(g.records))
				stats.Add(domain.Message{
					Kind:    domain.MessageDebug,
					Title:   k.Word,
					Section: k.Lang,
					Text:    MsgMissingPOS,
					Detail:  fmt.Sprintf("%d records dropped", len(g.records)),
				})
				continue
			}
			if !seen.Has(domain.IdentityKey{Word: k.Word, Lang: k.Lang, POS: g.pos}) {
				pending = append(pending, g)
			}
		}
		if len(pending) == 0 {
			continue
		}

		code, ok := s.langs.Code(k.Lang)
		if !ok {
			stats.Inc(domain.CounterSynthUnknownLanguage, 1)
			stats.Add(domain.Message{
				Kind:    domain.MessageWarning,
				Title:   k.Word,
				Section: k.Lang,
				Text:    MsgUnknownLanguage,
				Detail:  fmt.Sprintf("cannot resolve a code for %q", k.Lang),
			})
			continue
		}
		if len(s.allowed) > 0 {
			if _, ok := s.allowed[code]; !ok {
				stats.Inc(domain.CounterEntriesFilteredLanguage, len(pending))
				continue
			}
		}

		for _, g := range pending {
			e := s.build(k, code, g, &stats)
			if err := emit(ctx, e); err != nil {
				return stats, fmt.Errorf("synth: emit %s: %w", k, err)
			}
			stats.Inc(domain.CounterSynthEntries, 1)
		}
	}

	s.log.InfoContext(ctx, "synthetic entries emitted",
		slog.Int("entries", stats.Counters[domain.CounterSynthEntries]),
		slog.Int("unknown_language", stats.Counters[domain.CounterSynthUnknownLanguage]),
	)
	return stats, nil
}

type posGroup struct {
	pos     string
	records []domain.RelationRecord
}

// partitionByPOS keeps the first-seen order of parts of speech and records.
func partitionByPOS(records []domain.RelationRecord) []posGroup {
	var groups []posGroup
	idx := make(map[string]int)
	for _, r := range records {
		i, ok := idx[r.POS]
		if !ok {
			i = len(groups)
			idx[r.POS] = i
			groups = append(groups, posGroup{pos: r.POS})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

func (s *Service) build(k domain.XRefKey, code string, g posGroup, stats *domain.PageStats) domain.Entry {
	var (
		senses   []domain.Sense
		bySense  = make(map[string]int)
		noSense  []domain.RelationRecord
		attachTo = func(sense *domain.Sense, r domain.RelationRecord) {
			if !sense.AddLinkage(r.Relation, r.Linkage()) {
				stats.Inc(domain.CounterSynthUnknownRelation, 1)
				stats.Add(domain.Message{
					Kind:    domain.MessageDebug,
					Title:   k.Word,
					Section: k.Lang,
					Text:    MsgUnknownRelation,
					Detail:  string(r.Relation),
				})
			}
		}
	)

	for _, r := range g.records {
		if r.Sense == "" {
			noSense = append(noSense, r)
			continue
		}
		i, ok := bySense[r.Sense]
		if !ok {
			i = len(senses)
			bySense[r.Sense] = i
			senses = append(senses, domain.Sense{Glosses: []string{r.Sense}})
		}
		attachTo(&senses[i], r)
	}
	stats.Inc(domain.CounterSynthRecordsNoSense, len(noSense))

	if len(senses) == 0 {
		sense := domain.Sense{Tags: []string{domain.TagNoGloss}}
		for _, r := range noSense {
			attachTo(&sense, r)
		}
		senses = []domain.Sense{sense}
	}

	return domain.Entry{
		Word:     k.Word,
		Lang:     k.Lang,
		LangCode: code,
		POS:      g.pos,
		Senses:   senses,
		Source:   domain.SourceThesaurus,
	}
}
