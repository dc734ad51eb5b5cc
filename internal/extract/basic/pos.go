package basic

import (
	"strings"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// posMap maps lowercase part-of-speech headings to part-of-speech codes.
var posMap = map[string]string{
	"noun":         "noun",
	"proper noun":  "name",
	"verb":         "verb",
	"adjective":    "adj",
	"adverb":       "adv",
	"pronoun":      "pron",
	"preposition":  "prep",
	"postposition": "postp",
	"conjunction":  "conj",
	"interjection": "intj",
	"phrase":       "phrase",
	"idiom":        "phrase",
	"proverb":      "proverb",
	"numeral":      "num",
	"number":       "num",
	"determiner":   "det",
	"particle":     "particle",
	"article":      "article",
	"prefix":       "prefix",
	"suffix":       "suffix",
	"infix":        "infix",
	"affix":        "affix",
	"character":    "character",
	"symbol":       "symbol",
	"punctuation":  "punct",
	"contraction":  "contraction",
	"abbreviation": "abbrev",
	"initialism":   "abbrev",
	"acronym":      "abbrev",
	"participle":   "verb",
}

// relationMap maps lowercase linkage headings to relation types.
var relationMap = map[string]domain.RelationType{
	"synonyms":         domain.RelationSynonym,
	"antonyms":         domain.RelationAntonym,
	"hypernyms":        domain.RelationHypernym,
	"hyponyms":         domain.RelationHyponym,
	"holonyms":         domain.RelationHolonym,
	"meronyms":         domain.RelationMeronym,
	"troponyms":        domain.RelationTroponym,
	"coordinate terms": domain.RelationCoordinateTerm,
	"derived terms":    domain.RelationDerived,
	"related terms":    domain.RelationRelated,
	"see also":         domain.RelationRelated,
}

// MapPOS converts a section heading to a part-of-speech code.
// The lookup is case-insensitive.
func MapPOS(heading string) (string, bool) {
	pos, ok := posMap[strings.ToLower(strings.TrimSpace(heading))]
	return pos, ok
}

// MapRelation converts a linkage heading to a relation type.
func MapRelation(heading string) (domain.RelationType, bool) {
	rt, ok := relationMap[strings.ToLower(strings.TrimSpace(heading))]
	return rt, ok
}
