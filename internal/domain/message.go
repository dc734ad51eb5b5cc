package domain

// Message is one diagnostic produced while processing a page.
type Message struct {
	Kind    MessageKind `json:"kind"`
	Title   string      `json:"title"`
	Section string      `json:"section,omitempty"`
	Text    string      `json:"msg"`
	Detail  string      `json:"trace,omitempty"`
}

// Counter names shared by the dispatcher, synthesizer and report.
const (
	CounterPagesSeen               = "pages_seen"
	CounterPagesSkipped            = "pages_skipped"
	CounterPagesFailed             = "pages_failed"
	CounterPagesSlow               = "pages_slow"
	CounterRedirects               = "redirects"
	CounterEntriesExtracted        = "entries_extracted"
	CounterEntriesFilteredLanguage = "entries_filtered_language"
	CounterThesaurusPages          = "thesaurus_pages"
	CounterThesaurusFailed         = "thesaurus_pages_failed"
	CounterRelationRecords         = "relation_records"
	CounterSynthEntries            = "synthetic_entries"
	CounterSynthUnknownLanguage    = "synthetic_unknown_language"
	CounterSynthRecordsNoSense     = "synthetic_records_without_sense"
	CounterSynthUnknownRelation    = "synthetic_unknown_relation"
	CounterInvalidEntries          = "entries_invalid"
	CounterEntriesEmitted          = "entries_emitted"
	CounterEntriesNotEmitted       = "entries_not_emitted"
	CounterPagesIndexed            = "pages_indexed"
	CounterLinkagesInjected        = "thesaurus_linkages_injected"
	CounterSynthRecordsNoPOS       = "synthetic_records_without_pos"
)

// Skip reasons reported by the dispatcher.
const (
	SkipNamespace = "namespace"
	SkipSuffix    = "suffix"
	SkipEmpty     = "empty_title"
	// SkipCancelled marks pages that were not extracted because the run
	// was cancelled. They are not failures.
	SkipCancelled = "cancelled"
)

// PageStats carries the counters and diagnostics for one unit of work.
// It is produced inside a worker and merged only by the aggregating context.
type PageStats struct {
	Counters map[string]int
	Messages []Message

	// SkipReason is set when the dispatcher skipped the page by policy or
	// because the run was cancelled.
	SkipReason string
	// Failed is set when the extractor returned an error or panicked.
	Failed bool
	// Slow is set when extraction exceeded the slow-page threshold.
	Slow bool
	// Title is the normalized title the stats refer to.
	Title string
}

// Inc adds n to counter name.
func (s *PageStats) Inc(name string, n int) {
	if s.Counters == nil {
		s.Counters = make(map[string]int)
	}
	s.Counters[name] += n
}

// Add appends a diagnostic.
func (s *PageStats) Add(m Message) {
	s.Messages = append(s.Messages, m)
}
