package basic

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

type thesaurusState struct {
	word     string
	source   string
	lang     string
	skipLang bool
	pos      string
	sense    string
	relation domain.RelationType
	records  []domain.RelationRecord
	messages []domain.Message
}

func (s *thesaurusState) note(kind domain.MessageKind, section, text string) {
	s.messages = append(s.messages, domain.Message{
		Kind:    kind,
		Title:   s.source,
		Section: section,
		Text:    text,
	})
}

// ExtractRelations reads the relation lists of one thesaurus page. The
// headword is the title without its namespace prefix and subpage suffix.
func (x *Extractor) ExtractRelations(ctx context.Context, title, body string) ([]domain.RelationRecord, []domain.Message, error) {
	word, _, _ := strings.Cut(domain.TitleWithoutPrefix(title), "/")
	st := &thesaurusState{word: word, source: title}
	if word == "" {
		return nil, nil, fmt.Errorf("%w: thesaurus page %q has no headword", domain.ErrExtraction, title)
	}

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		line := strings.TrimSpace(sc.Text())

		if level, text, ok := Heading(line); ok {
			x.thesaurusHeading(st, level, text)
			continue
		}
		if st.skipLang || st.lang == "" {
			continue
		}
		st.line(line)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: scan %q: %w", domain.ErrExtraction, title, err)
	}

	return st.records, st.messages, nil
}

func (x *Extractor) thesaurusHeading(st *thesaurusState, level int, text string) {
	if level == 2 {
		st.lang, st.pos, st.sense, st.relation = text, "", "", ""
		_, ok := x.langs.Code(text)
		st.skipLang = !ok
		if !ok {
			st.note(domain.MessageWarning, text, fmt.Sprintf("unknown language name %q", text))
		}
		return
	}

	if sense, ok := strings.CutPrefix(text, "Sense:"); ok {
		st.sense = StripMarkup(sense)
		st.relation = ""
		return
	}
	if pos, ok := MapPOS(text); ok {
		st.pos, st.sense, st.relation = pos, "", ""
		return
	}
	if rt, ok := MapRelation(text); ok {
		st.relation = rt
		return
	}
	st.relation = ""
}

func (st *thesaurusState) line(line string) {
	for _, t := range Templates(line) {
		if t.Name == "ws sense" {
			st.sense = StripMarkup(t.Arg(1))
			st.relation = ""
			return
		}
	}

	if st.relation == "" {
		return
	}

	for _, t := range Templates(line) {
		if t.Name != "ws" {
			continue
		}
		st.add(t.Arg(1), t.Named["tr"], splitTags(t.Named["q"], t.Named["qq"]), t.Named["lv"])
		return
	}

	if !strings.HasPrefix(line, "*") {
		return
	}
	item := strings.TrimLeft(line, "*: ")
	target := StripMarkup(item)
	if i := strings.IndexAny(target, ",;("); i > 0 {
		target = strings.TrimSpace(target[:i])
	}
	st.add(target, "", LabelTags(item), "")
}

func (st *thesaurusState) add(target, roman string, tags []string, variant string) {
	target = strings.TrimSpace(target)
	if target == "" || target == st.word {
		return
	}
	if st.pos == "" {
		st.note(domain.MessageDebug, st.lang, fmt.Sprintf("relation %q outside a part-of-speech section", target))
		return
	}
	st.records = append(st.records, domain.RelationRecord{
		POS:             st.pos,
		Relation:        st.relation,
		Target:          target,
		Sense:           st.sense,
		Roman:           roman,
		Tags:            tags,
		LanguageVariant: variant,
		Source:          st.source,
		Word:            st.word,
		Lang:            st.lang,
	})
}

func splitTags(values ...string) []string {
	var tags []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return DeduplicateStrings(tags)
}
