package domain

import (
	"fmt"
	"slices"
)

// Entry is one lexical record: a word/language/part-of-speech combination,
// or a redirect stub when Redirect is set. Entries are immutable once emitted.
type Entry struct {
	Word     string  `json:"word,omitempty"`
	Title    string  `json:"title,omitempty"`
	Redirect string  `json:"redirect,omitempty"`
	Lang     string  `json:"lang,omitempty"`
	LangCode string  `json:"lang_code,omitempty"`
	POS      string  `json:"pos,omitempty"`
	Senses   []Sense `json:"senses,omitempty"`

	EtymologyText   string   `json:"etymology_text,omitempty"`
	EtymologyNumber int      `json:"etymology_number,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// Sense is one meaning of an entry with the linkages attached to it.
type Sense struct {
	Glosses    []string `json:"glosses,omitempty"`
	RawGlosses []string `json:"raw_glosses,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Topics     []string `json:"topics,omitempty"`

	Synonyms        []Linkage `json:"synonyms,omitempty"`
	Antonyms        []Linkage `json:"antonyms,omitempty"`
	Hypernyms       []Linkage `json:"hypernyms,omitempty"`
	Hyponyms        []Linkage `json:"hyponyms,omitempty"`
	Holonyms        []Linkage `json:"holonyms,omitempty"`
	Meronyms        []Linkage `json:"meronyms,omitempty"`
	Troponyms       []Linkage `json:"troponyms,omitempty"`
	CoordinateTerms []Linkage `json:"coordinate_terms,omitempty"`
	Derived         []Linkage `json:"derived,omitempty"`
	Related         []Linkage `json:"related,omitempty"`
}

// Linkage is a link from a sense to another word.
type Linkage struct {
	Word            string   `json:"word"`
	Sense           string   `json:"sense,omitempty"`
	Roman           string   `json:"roman,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	LanguageVariant string   `json:"language_variant,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// AddLinkage appends l to the list for relation rt. Unknown relation types
// are appended to Related and reported as false.
func (s *Sense) AddLinkage(rt RelationType, l Linkage) bool {
	switch rt {
	case RelationSynonym:
		s.Synonyms = append(s.Synonyms, l)
	case RelationAntonym:
		s.Antonyms = append(s.Antonyms, l)
	case RelationHypernym:
		s.Hypernyms = append(s.Hypernyms, l)
	case RelationHyponym:
		s.Hyponyms = append(s.Hyponyms, l)
	case RelationHolonym:
		s.Holonyms = append(s.Holonyms, l)
	case RelationMeronym:
		s.Meronyms = append(s.Meronyms, l)
	case RelationTroponym:
		s.Troponyms = append(s.Troponyms, l)
	case RelationCoordinateTerm:
		s.CoordinateTerms = append(s.CoordinateTerms, l)
	case RelationDerived:
		s.Derived = append(s.Derived, l)
	case RelationRelated:
		s.Related = append(s.Related, l)
	default:
		s.Related = append(s.Related, l)
		return false
	}
	return true
}

// Linkages returns all linkage lists keyed by relation type, skipping empty ones.
func (s *Sense) Linkages() map[RelationType][]Linkage {
	all := map[RelationType][]Linkage{
		RelationSynonym:        s.Synonyms,
		RelationAntonym:        s.Antonyms,
		RelationHypernym:       s.Hypernyms,
		RelationHyponym:        s.Hyponyms,
		RelationHolonym:        s.Holonyms,
		RelationMeronym:        s.Meronyms,
		RelationTroponym:       s.Troponyms,
		RelationCoordinateTerm: s.CoordinateTerms,
		RelationDerived:        s.Derived,
		RelationRelated:        s.Related,
	}
	for k, v := range all {
		if len(v) == 0 {
			delete(all, k)
		}
	}
	return all
}

// IsRedirect reports whether the entry is a redirect stub.
func (e *Entry) IsRedirect() bool {
	return e.Title != "" && e.Redirect != ""
}

// IdentityKey returns the (word, lang, pos) key of e. ok is false when any
// component is missing, which is always the case for redirect stubs.
func (e *Entry) IdentityKey() (IdentityKey, bool) {
	if e.Word == "" || e.Lang == "" || e.POS == "" {
		return IdentityKey{}, false
	}
	return IdentityKey{Word: e.Word, Lang: e.Lang, POS: e.POS}, true
}

// NewRedirectEntry builds the stub emitted for a redirect page.
func NewRedirectEntry(title, target string) Entry {
	return Entry{Title: title, Redirect: target, POS: POSHardRedirect}
}

// IdentityKey identifies a concept emitted by the main pass. A key may map to
// several entries (homonyms split by etymology) and is only used for
// membership tests.
type IdentityKey struct {
	Word string
	Lang string
	POS  string
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Word, k.Lang, k.POS)
}

// KeySet is a set of identity keys. It is not safe for concurrent use.
type KeySet map[IdentityKey]struct{}

// Add records k.
func (s KeySet) Add(k IdentityKey) { s[k] = struct{}{} }

// Has reports whether k was recorded.
func (s KeySet) Has(k IdentityKey) bool {
	_, ok := s[k]
	return ok
}

// Validate checks the structural contract of an entry before it reaches a sink.
// Redirect stubs only need a title and a target.
func (e *Entry) Validate() error {
	if e.Word == "" && e.Title == "" {
		return NewValidationError("word", `missing "word" or "title"`)
	}
	if e.Title != "" {
		if e.Redirect == "" {
			return NewValidationError("redirect", "redirect target is required")
		}
		return nil
	}

	var errs []FieldError
	if e.Lang == "" {
		errs = append(errs, FieldError{Field: "lang", Message: "required"})
	}
	if e.POS == "" {
		errs = append(errs, FieldError{Field: "pos", Message: "required"})
	}
	if e.LangCode == "" {
		errs = append(errs, FieldError{Field: "lang_code", Message: "required"})
	}
	if len(e.Senses) == 0 {
		errs = append(errs, FieldError{Field: "senses", Message: `at least one sense required (use a "no-gloss" sense)`})
	}
	for i := range e.Senses {
		s := &e.Senses[i]
		if len(s.Glosses) == 0 && !slices.Contains(s.Tags, TagNoGloss) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("senses[%d].glosses", i),
				Message: `need at least one gloss or the "no-gloss" tag`,
			})
		}
		for rt, items := range s.Linkages() {
			for _, l := range items {
				if l.Word == "" {
					errs = append(errs, FieldError{
						Field:   fmt.Sprintf("senses[%d].%s", i, rt),
						Message: "linkage word must not be empty",
					})
					break
				}
			}
		}
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}
