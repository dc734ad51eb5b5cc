// Package basic is a shallow, line-oriented extractor for English
// Wiktionary wikitext. It reads language and part-of-speech headings, gloss
// lines and thesaurus relation lists; it does not expand templates.
package basic

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/internal/extract"
)

// Languages resolves language names to codes.
type Languages interface {
	Code(name string) (string, bool)
}

// Extractor implements extract.PageExtractor and extract.RelationExtractor.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	langs Languages
}

// New creates an Extractor.
func New(langs Languages) *Extractor {
	return &Extractor{langs: langs}
}

var (
	_ extract.PageExtractor     = (*Extractor)(nil)
	_ extract.RelationExtractor = (*Extractor)(nil)
)

// pageState accumulates entries while scanning one page.
type pageState struct {
	title    string
	lang     string
	langCode string
	skipLang bool
	etymNum  int
	cur      *domain.Entry
	entries  []domain.Entry
	messages []domain.Message
}

func (s *pageState) flush() {
	if s.cur == nil {
		return
	}
	if len(s.cur.Senses) == 0 {
		s.cur.Senses = []domain.Sense{{Tags: []string{domain.TagNoGloss}}}
		s.note(domain.MessageDebug, s.cur.POS, "no senses found")
	}
	s.entries = append(s.entries, *s.cur)
	s.cur = nil
}

func (s *pageState) note(kind domain.MessageKind, section, text string) {
	s.messages = append(s.messages, domain.Message{
		Kind:    kind,
		Title:   s.title,
		Section: section,
		Text:    text,
	})
}

// ExtractPage reads one content page.
func (x *Extractor) ExtractPage(ctx context.Context, title, body string) (extract.Result, error) {
	st := &pageState{title: title}
	categories := Categories(body)

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return extract.Result{}, err
		}
		line := sc.Text()

		if level, text, ok := Heading(line); ok {
			x.heading(st, level, text)
			continue
		}
		if st.cur == nil || st.skipLang {
			continue
		}
		if gloss, ok := glossLine(line); ok {
			st.cur.Senses = append(st.cur.Senses, buildSense(gloss))
		}
	}
	if err := sc.Err(); err != nil {
		return extract.Result{}, fmt.Errorf("%w: scan %q: %w", domain.ErrExtraction, title, err)
	}
	st.flush()

	for i := range st.entries {
		st.entries[i].Categories = categories
	}
	if len(st.entries) == 0 && len(st.messages) == 0 {
		st.note(domain.MessageNote, "", "no language sections")
	}

	return extract.Result{Entries: st.entries, Messages: st.messages}, nil
}

func (x *Extractor) heading(st *pageState, level int, text string) {
	if level == 2 {
		st.flush()
		st.lang = text
		st.etymNum = 0
		code, ok := x.langs.Code(text)
		st.langCode = code
		st.skipLang = !ok
		if !ok {
			st.note(domain.MessageWarning, text, fmt.Sprintf("unknown language name %q", text))
		}
		return
	}
	if st.lang == "" || st.skipLang {
		return
	}

	if rest, ok := strings.CutPrefix(text, "Etymology"); ok {
		st.flush()
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			st.etymNum = n
		}
		return
	}

	pos, ok := MapPOS(text)
	if !ok {
		// Sub-sections of a part of speech (Usage notes, Synonyms, ...)
		// keep the current entry open; anything at its level closes it.
		return
	}
	st.flush()
	st.cur = &domain.Entry{
		Word:            st.title,
		Lang:            st.lang,
		LangCode:        st.langCode,
		POS:             pos,
		EtymologyNumber: st.etymNum,
	}
}

// glossLine returns the gloss text of a "# ..." definition line. Example,
// quotation and sub-definition lines ("#:", "#*", "##") are not glosses.
func glossLine(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := line[1:]
	if rest == "" || strings.ContainsRune(":*#", rune(rest[0])) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func buildSense(raw string) domain.Sense {
	sense := domain.Sense{Tags: LabelTags(raw)}
	if g := StripMarkup(raw); g != "" {
		sense.Glosses = []string{g}
		if g != raw {
			sense.RawGlosses = []string{raw}
		}
	} else {
		sense.Tags = append(sense.Tags, domain.TagNoGloss)
	}
	return sense
}
