package domain

// ContentModel distinguishes plain wikitext pages from redirects and other
// page kinds stored in the corpus.
type ContentModel string

const (
	ContentModelWikitext  ContentModel = "wikitext"
	ContentModelRedirect  ContentModel = "redirect"
	ContentModelScribunto ContentModel = "scribunto"
	ContentModelOther     ContentModel = "other"
)

func (m ContentModel) String() string { return string(m) }

func (m ContentModel) IsValid() bool {
	switch m {
	case ContentModelWikitext, ContentModelRedirect, ContentModelScribunto, ContentModelOther:
		return true
	}
	return false
}

// MessageKind classifies a diagnostic message.
type MessageKind string

const (
	MessageError   MessageKind = "error"
	MessageWarning MessageKind = "warning"
	MessageNote    MessageKind = "note"
	MessageDebug   MessageKind = "debug"
)

func (k MessageKind) String() string { return string(k) }

func (k MessageKind) IsValid() bool {
	switch k {
	case MessageError, MessageWarning, MessageNote, MessageDebug:
		return true
	}
	return false
}

// RelationType is the kind of semantic link between two words.
type RelationType string

const (
	RelationSynonym        RelationType = "synonyms"
	RelationAntonym        RelationType = "antonyms"
	RelationHypernym       RelationType = "hypernyms"
	RelationHyponym        RelationType = "hyponyms"
	RelationHolonym        RelationType = "holonyms"
	RelationMeronym        RelationType = "meronyms"
	RelationTroponym       RelationType = "troponyms"
	RelationCoordinateTerm RelationType = "coordinate_terms"
	RelationDerived        RelationType = "derived"
	RelationRelated        RelationType = "related"
)

func (r RelationType) String() string { return string(r) }

func (r RelationType) IsValid() bool {
	switch r {
	case RelationSynonym, RelationAntonym, RelationHypernym, RelationHyponym,
		RelationHolonym, RelationMeronym, RelationTroponym, RelationCoordinateTerm,
		RelationDerived, RelationRelated:
		return true
	}
	return false
}

// Entry provenance values.
const (
	SourceThesaurus = "thesaurus"
	SourcePage      = "page"
)

// Well-known tags and pseudo parts of speech.
const (
	TagNoGloss       = "no-gloss"
	POSHardRedirect  = "hard-redirect"
	MainNamespace    = "Main"
	MainNamespaceID  = 0
	ModuleNamespace  = 828
	ThesaurusDefault = "Thesaurus"
)
