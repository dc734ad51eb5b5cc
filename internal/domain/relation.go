package domain

import "fmt"

// RelationRecord is one word-to-word link read from a thesaurus page.
type RelationRecord struct {
	POS             string
	Relation        RelationType
	Target          string
	Sense           string
	Roman           string
	Tags            []string
	Topics          []string
	LanguageVariant string
	// Source is the page the record was read from, e.g. "Thesaurus:kettu".
	Source string

	// Word and Lang are the headword the record belongs to; the
	// cross-reference index groups records by them.
	Word string
	Lang string
}

// XRefKey groups relation records in the cross-reference index.
type XRefKey struct {
	Word string
	Lang string
}

func (k XRefKey) String() string {
	return fmt.Sprintf("%s/%s", k.Word, k.Lang)
}

// Key returns the cross-reference key of r.
func (r *RelationRecord) Key() XRefKey {
	return XRefKey{Word: r.Word, Lang: r.Lang}
}

// Linkage converts r to the linkage attached under a synthetic sense.
func (r *RelationRecord) Linkage() Linkage {
	return Linkage{
		Word:            r.Target,
		Roman:           r.Roman,
		Tags:            r.Tags,
		Topics:          r.Topics,
		LanguageVariant: r.LanguageVariant,
		Source:          r.Source,
	}
}
