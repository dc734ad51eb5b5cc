// Package stats aggregates per-page counters and diagnostics into one
// run-wide report. Every merge is commutative and associative, so the
// finalized report does not depend on worker completion order.
package stats

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// Report is not safe for concurrent use; only the aggregating context
// mutates it.
type Report struct {
	Counters      map[string]int                          `json:"counters"`
	Skipped       map[string]int                          `json:"skipped_by_reason"`
	FailedTitles  []string                                `json:"failed_titles"`
	SlowTitles    []string                                `json:"slow_titles"`
	MessageCounts map[domain.MessageKind]int              `json:"message_counts"`
	MessageTexts  map[string]int                          `json:"message_texts"`
	Messages      map[domain.MessageKind][]domain.Message `json:"messages"`

	// messageCap bounds every sample list. Zero means unbounded.
	messageCap int
}

// New creates an empty report. messageCap bounds the title and message
// sample lists; counts stay exact.
func New(messageCap int) *Report {
	return &Report{
		Counters:      make(map[string]int),
		Skipped:       make(map[string]int),
		MessageCounts: make(map[domain.MessageKind]int),
		MessageTexts:  make(map[string]int),
		Messages:      make(map[domain.MessageKind][]domain.Message),
		messageCap:    messageCap,
	}
}

// Inc adds n to a counter.
func (r *Report) Inc(name string, n int) {
	if n == 0 {
		return
	}
	r.Counters[name] += n
}

// Counter returns the value of a counter.
func (r *Report) Counter(name string) int {
	return r.Counters[name]
}

// AddMessage records one diagnostic.
func (r *Report) AddMessage(m domain.Message) {
	r.MessageCounts[m.Kind]++
	r.MessageTexts[m.Text]++
	r.Messages[m.Kind] = bound(append(r.Messages[m.Kind], m), r.messageCap, compareMessages)
}

// MergePage folds the stats of one page into the report.
func (r *Report) MergePage(s domain.PageStats) {
	r.Inc(domain.CounterPagesSeen, 1)
	if s.SkipReason != "" {
		r.Inc(domain.CounterPagesSkipped, 1)
		r.Skipped[s.SkipReason]++
	}
	if s.Failed {
		r.Inc(domain.CounterPagesFailed, 1)
		r.FailedTitles = bound(append(r.FailedTitles, s.Title), r.messageCap, cmp.Compare[string])
	}
	if s.Slow {
		r.Inc(domain.CounterPagesSlow, 1)
		r.SlowTitles = bound(append(r.SlowTitles, s.Title), r.messageCap, cmp.Compare[string])
	}
	r.MergeStats(s)
}

// MergeStats folds counters and messages of a whole pass (cross-reference,
// synthesis) without page accounting.
func (r *Report) MergeStats(s domain.PageStats) {
	for name, n := range s.Counters {
		r.Inc(name, n)
	}
	for _, m := range s.Messages {
		r.AddMessage(m)
	}
}

// Merge folds another report into r. o is not modified.
func (r *Report) Merge(o *Report) {
	for name, n := range o.Counters {
		r.Inc(name, n)
	}
	for reason, n := range o.Skipped {
		r.Skipped[reason] += n
	}
	for kind, n := range o.MessageCounts {
		r.MessageCounts[kind] += n
	}
	for text, n := range o.MessageTexts {
		r.MessageTexts[text] += n
	}
	for kind, msgs := range o.Messages {
		r.Messages[kind] = bound(append(r.Messages[kind], msgs...), r.messageCap, compareMessages)
	}
	r.FailedTitles = bound(append(r.FailedTitles, o.FailedTitles...), r.messageCap, cmp.Compare[string])
	r.SlowTitles = bound(append(r.SlowTitles, o.SlowTitles...), r.messageCap, cmp.Compare[string])
}

// Finalize sorts every sample list and trims it to the cap. Two reports
// built from the same pages in any order are equal after Finalize.
func (r *Report) Finalize() {
	r.FailedTitles = trim(r.FailedTitles, r.messageCap, cmp.Compare[string])
	r.SlowTitles = trim(r.SlowTitles, r.messageCap, cmp.Compare[string])
	for kind, msgs := range r.Messages {
		r.Messages[kind] = trim(msgs, r.messageCap, compareMessages)
	}
}

// FailureRatio returns failed pages over dispatched (seen minus skipped)
// pages, and the number of dispatched pages.
func (r *Report) FailureRatio() (float64, int) {
	dispatched := r.Counter(domain.CounterPagesSeen) - r.Counter(domain.CounterPagesSkipped)
	if dispatched <= 0 {
		return 0, 0
	}
	return float64(r.Counter(domain.CounterPagesFailed)) / float64(dispatched), dispatched
}

// bound keeps a sample list at most twice the cap between finalizations so
// memory stays proportional to the cap.
func bound[T any](list []T, limit int, compare func(a, b T) int) []T {
	if limit <= 0 || len(list) <= 2*limit {
		return list
	}
	return trim(list, limit, compare)
}

// trim sorts list and keeps the first limit items. The kept set only depends
// on the union of inputs, which keeps merges order-independent.
func trim[T any](list []T, limit int, compare func(a, b T) int) []T {
	slices.SortStableFunc(list, compare)
	if limit > 0 && len(list) > limit {
		clear(list[limit:])
		list = list[:limit]
	}
	return list
}

// WriteJSON writes the finalized report.
func (r *Report) WriteJSON(w io.Writer, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("stats: encode report: %w", err)
	}
	return nil
}

// LogSummary logs the headline numbers and the most frequent message texts.
func (r *Report) LogSummary(log *slog.Logger, top int) {
	attrs := make([]any, 0, len(r.Counters)+len(r.Skipped))
	for _, name := range slices.Sorted(maps.Keys(r.Counters)) {
		attrs = append(attrs, slog.Int(name, r.Counters[name]))
	}
	for _, reason := range slices.Sorted(maps.Keys(r.Skipped)) {
		attrs = append(attrs, slog.Int("skipped_"+reason, r.Skipped[reason]))
	}
	log.Info("run summary", attrs...)

	for _, tc := range r.TopMessages(top) {
		log.Info("frequent message", slog.String("msg", tc.Text), slog.Int("count", tc.Count))
	}
}

// TextCount is one entry of TopMessages.
type TextCount struct {
	Text  string
	Count int
}

// TopMessages returns the n most frequent message texts, most frequent first.
func (r *Report) TopMessages(n int) []TextCount {
	out := make([]TextCount, 0, len(r.MessageTexts))
	for text, c := range r.MessageTexts {
		out = append(out, TextCount{Text: text, Count: c})
	}
	slices.SortFunc(out, func(a, b TextCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Text, b.Text)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func compareMessages(a, b domain.Message) int {
	return cmp.Or(
		cmp.Compare(a.Title, b.Title),
		cmp.Compare(a.Text, b.Text),
		cmp.Compare(a.Section, b.Section),
		cmp.Compare(a.Detail, b.Detail),
		cmp.Compare(a.Kind, b.Kind),
	)
}
