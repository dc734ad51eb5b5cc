package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/wiktlex/internal/corpus"
	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/internal/extract"
	"github.com/heartmarshall/wiktlex/internal/extract/basic"
	"github.com/heartmarshall/wiktlex/internal/langcode"
	"github.com/heartmarshall/wiktlex/internal/service/dispatch"
	"github.com/heartmarshall/wiktlex/internal/service/synth"
	"github.com/heartmarshall/wiktlex/internal/service/xref"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeEngine struct {
	pages   []domain.Page
	indexed bool

	indexCalls int
	indexErr   error
	walkErr    error
	// queryErr fails a walk before any page is visited when it returns non-nil.
	queryErr func(q domain.PageQuery) error
}

func (f *fakeEngine) Index(context.Context) (corpus.IndexResult, error) {
	f.indexCalls++
	if f.indexErr != nil {
		return corpus.IndexResult{}, f.indexErr
	}
	f.indexed = true
	return corpus.IndexResult{Pages: len(f.pages), Saved: len(f.pages)}, nil
}

func (f *fakeEngine) Indexed(context.Context) (bool, error) { return f.indexed, nil }

func (f *fakeEngine) match(q domain.PageQuery, p domain.Page) bool {
	if p.IsRedirect() && !q.IncludeRedirects {
		return false
	}
	ns := cmp.Or(domain.TitlePrefix(p.Title), domain.MainNamespace)
	return len(q.Namespaces) == 0 || slices.Contains(q.Namespaces, ns)
}

func (f *fakeEngine) Walk(ctx context.Context, q domain.PageQuery, fn func(domain.Page) error) error {
	if !f.indexed {
		return domain.ErrIndexIncomplete
	}
	if f.queryErr != nil {
		if err := f.queryErr(q); err != nil {
			return err
		}
	}
	for _, p := range f.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.match(q, p) {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return f.walkErr
}

func (f *fakeEngine) Count(_ context.Context, q domain.PageQuery) (int, error) {
	n := 0
	for _, p := range f.pages {
		if f.match(q, p) {
			n++
		}
	}
	return n, nil
}

type memorySink struct {
	mu      sync.Mutex
	entries []domain.Entry
	failAt  int
	err     error
}

func (s *memorySink) Emit(_ context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && len(s.entries) == s.failAt {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) keys() []string {
	var out []string
	for _, e := range s.entries {
		if k, ok := e.IdentityKey(); ok {
			out = append(out, k.String())
		} else {
			out = append(out, "redirect:"+e.Title)
		}
	}
	slices.Sort(out)
	return out
}

type countingObserver struct {
	outcomes map[string]int
	sources  map[string]int
}

func (o *countingObserver) PageProcessed(outcome string, _ time.Duration) { o.outcomes[outcome]++ }
func (o *countingObserver) EntryEmitted(source string)                    { o.sources[source]++ }

func newTestPipeline(t *testing.T, engine *fakeEngine, ex extract.PageExtractor, cfg Config, obs Observer) *Pipeline {
	t.Helper()
	langs, err := langcode.Default()
	require.NoError(t, err)

	log := slog.New(slog.DiscardHandler)
	b := basic.New(langs)
	return New(log, engine,
		dispatch.NewService(log, ex, dispatch.Policy{
			NamespaceDenylist: []string{"Citations"},
			SuffixDenylist:    []string{"translations"},
		}),
		xref.NewService(log, b, "Thesaurus"),
		synth.NewService(log, langs, nil),
		obs,
		cfg,
	)
}

func defaultConfig() Config {
	return Config{
		Workers:           4,
		ExtractNamespaces: []string{"Main"},
		ExtractThesaurus:  true,
	}
}

var corpusPages = []domain.Page{
	{Title: "dog", Model: domain.ContentModelWikitext, Body: "==English==\n===Noun===\n# a domesticated canine\n"},
	{Title: "Foo", Model: domain.ContentModelRedirect, RedirectTo: "Bar"},
	{Title: "dog/translations", Model: domain.ContentModelWikitext, Body: "==English==\n"},
	{Title: "Citations:dog", Model: domain.ContentModelWikitext, Body: "==English==\n"},
	{Title: "Thesaurus:kettu", Namespace: 110, Model: domain.ContentModelWikitext,
		Body: "==Finnish==\n===Noun===\n{{ws sense|fi|fox}}\n====Synonyms====\n{{ws|fi|repo}}\n"},
	{Title: "Thesaurus:dog", Namespace: 110, Model: domain.ContentModelWikitext,
		Body: "==English==\n===Noun===\n{{ws sense|en|canine}}\n====Synonyms====\n{{ws|en|hound}}\n"},
}

func basicExtractor(t *testing.T) extract.PageExtractor {
	t.Helper()
	langs, err := langcode.Default()
	require.NoError(t, err)
	return basic.New(langs)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRun_FullPass(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{pages: corpusPages}
	obs := &countingObserver{outcomes: map[string]int{}, sources: map[string]int{}}
	sink := &memorySink{}

	res, err := newTestPipeline(t, engine, basicExtractor(t), defaultConfig(), obs).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"dog/English/noun",
		"kettu/Finnish/noun",
		"redirect:Foo",
	}, sink.keys())

	r := res.Report
	// Citations:dog is outside the extracted namespaces and never walked.
	assert.Equal(t, 3, r.Counter(domain.CounterPagesSeen))
	assert.Equal(t, 1, r.Counter(domain.CounterPagesSkipped))
	assert.Equal(t, 1, r.Counter(domain.CounterRedirects))
	assert.Equal(t, 2, r.Counter(domain.CounterThesaurusPages))
	assert.Equal(t, 1, r.Counter(domain.CounterSynthEntries))
	assert.Equal(t, 3, r.Counter(domain.CounterEntriesEmitted))
	assert.Equal(t, 0, r.Counter(domain.CounterPagesFailed))

	assert.True(t, res.Seen.Has(domain.IdentityKey{Word: "dog", Lang: "English", POS: "noun"}))
	assert.Equal(t, 1, r.Counter(domain.CounterLinkagesInjected))
	assert.False(t, res.Seen.Has(domain.IdentityKey{Word: "kettu", Lang: "Finnish", POS: "noun"}))

	assert.Equal(t, 1, obs.outcomes[OutcomeSkipped])
	assert.Equal(t, 1, obs.outcomes[OutcomeRedirect])
	assert.Equal(t, 1, obs.sources[domain.SourceThesaurus])

	var names []string
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
	}
	assert.Equal(t, []string{PhaseIndex, PhaseXRef, PhaseExtract, PhaseSynthesize}, names)
}

func TestRun_InjectsThesaurusLinkages(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{pages: corpusPages}
	sink := &memorySink{}

	_, err := newTestPipeline(t, engine, basicExtractor(t), defaultConfig(), nil).Run(context.Background(), sink)
	require.NoError(t, err)

	idx := slices.IndexFunc(sink.entries, func(e domain.Entry) bool {
		return e.Word == "dog" && e.Lang == "English" && e.POS == "noun"
	})
	require.GreaterOrEqual(t, idx, 0, "dog/English/noun not emitted")
	dog := sink.entries[idx]
	require.NotEmpty(t, dog.Senses)
	require.Len(t, dog.Senses[0].Synonyms, 1)

	syn := dog.Senses[0].Synonyms[0]
	assert.Equal(t, "hound", syn.Word)
	assert.Equal(t, "canine", syn.Sense)
	assert.Equal(t, "Thesaurus:dog", syn.Source)
}

func TestRun_NoThesaurusMeansNoInjection(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{pages: corpusPages}
	sink := &memorySink{}
	cfg := defaultConfig()
	cfg.ExtractThesaurus = false

	res, err := newTestPipeline(t, engine, basicExtractor(t), cfg, nil).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Zero(t, res.Report.Counter(domain.CounterLinkagesInjected))
	for _, e := range sink.entries {
		for _, s := range e.Senses {
			assert.Empty(t, s.Synonyms, "%s got synonyms without a cross-reference index", e.Word)
		}
	}
}

func TestRun_RedirectBypassesExtractor(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	ex := extract.PageFunc(func(context.Context, string, string) (extract.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return extract.Result{}, nil
	})
	engine := &fakeEngine{pages: []domain.Page{{Title: "Foo", Model: domain.ContentModelRedirect, RedirectTo: "Bar"}}}
	sink := &memorySink{}

	cfg := defaultConfig()
	cfg.ExtractThesaurus = false
	_, err := newTestPipeline(t, engine, ex, cfg, nil).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Zero(t, calls)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "Foo", sink.entries[0].Title)
	assert.Equal(t, "Bar", sink.entries[0].Redirect)
}

func TestRun_ExtractorFailureIsIsolated(t *testing.T) {
	t.Parallel()

	good := basicExtractor(t)
	ex := extract.PageFunc(func(ctx context.Context, title, body string) (extract.Result, error) {
		if title == "broken" {
			return extract.Result{}, errors.New("template recursion")
		}
		return good.ExtractPage(ctx, title, body)
	})
	engine := &fakeEngine{pages: []domain.Page{
		{Title: "broken", Body: "==English==\n===Noun===\n# x\n"},
		{Title: "dog", Body: "==English==\n===Noun===\n# a canine\n"},
	}}
	sink := &memorySink{}

	cfg := defaultConfig()
	cfg.ExtractThesaurus = false
	res, err := newTestPipeline(t, engine, ex, cfg, nil).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Report.Counter(domain.CounterPagesFailed))
	assert.Equal(t, []string{"broken"}, res.Report.FailedTitles)
	assert.Equal(t, []string{"dog/English/noun"}, sink.keys())

	errs := res.Report.Messages[domain.MessageError]
	require.Len(t, errs, 1)
	assert.Equal(t, "broken", errs[0].Title)
	assert.Contains(t, errs[0].Detail, "template recursion")
}

func TestRun_MainPassIsIdempotent(t *testing.T) {
	t.Parallel()

	var pages []domain.Page
	for i := range 50 {
		pages = append(pages, domain.Page{
			Title: fmt.Sprintf("word%02d", i),
			Body:  "==English==\n===Noun===\n# a thing\n===Verb===\n# to thing\n",
		})
	}

	run := func() ([]string, domain.KeySet) {
		engine := &fakeEngine{pages: pages}
		sink := &memorySink{}
		cfg := defaultConfig()
		cfg.Workers = 8
		res, err := newTestPipeline(t, engine, basicExtractor(t), cfg, nil).Run(context.Background(), sink)
		require.NoError(t, err)
		return sink.keys(), res.Seen
	}

	keys1, seen1 := run()
	keys2, seen2 := run()
	assert.Len(t, keys1, 100)
	assert.Equal(t, keys1, keys2)
	assert.Equal(t, seen1, seen2)
}

func TestRun_SystematicFailureAborts(t *testing.T) {
	t.Parallel()

	ex := extract.PageFunc(func(context.Context, string, string) (extract.Result, error) {
		return extract.Result{}, errors.New("module missing")
	})
	var pages []domain.Page
	for i := range 40 {
		pages = append(pages, domain.Page{Title: fmt.Sprintf("p%02d", i)})
	}
	engine := &fakeEngine{pages: pages}

	cfg := defaultConfig()
	cfg.ExtractThesaurus = false
	cfg.MaxFailureRatio = 0.5
	cfg.MinPagesForFailureRatio = 10

	res, err := newTestPipeline(t, engine, ex, cfg, nil).Run(context.Background(), &memorySink{})
	require.ErrorIs(t, err, domain.ErrSystematicFailure)

	failed := res.Report.Counter(domain.CounterPagesFailed)
	assert.GreaterOrEqual(t, failed, 10)
	assert.Equal(t, failed, res.Report.Counter(domain.CounterPagesSeen))
}

func TestRun_FailureRatioBelowMinimumIsIgnored(t *testing.T) {
	t.Parallel()

	ex := extract.PageFunc(func(context.Context, string, string) (extract.Result, error) {
		return extract.Result{}, errors.New("boom")
	})
	engine := &fakeEngine{pages: []domain.Page{{Title: "a"}, {Title: "b"}}}

	cfg := defaultConfig()
	cfg.ExtractThesaurus = false
	cfg.MaxFailureRatio = 0.1
	cfg.MinPagesForFailureRatio = 1000

	res, err := newTestPipeline(t, engine, ex, cfg, nil).Run(context.Background(), &memorySink{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Counter(domain.CounterPagesFailed))
}

func TestRun_SinkErrorDrainsResults(t *testing.T) {
	t.Parallel()

	var pages []domain.Page
	for i := range 30 {
		pages = append(pages, domain.Page{Title: fmt.Sprintf("w%02d", i), Body: "==English==\n===Noun===\n# n\n"})
	}
	engine := &fakeEngine{pages: pages}
	sinkErr := errors.New("broken pipe")
	sink := &memorySink{failAt: 3, err: sinkErr}

	res, err := newTestPipeline(t, engine, basicExtractor(t), defaultConfig(), nil).Run(context.Background(), sink)
	require.ErrorIs(t, err, sinkErr)

	r := res.Report
	assert.Len(t, sink.entries, 3)
	assert.Equal(t, 3, r.Counter(domain.CounterEntriesEmitted))
	// Every page that reached the aggregator has its entries accounted for.
	assert.Equal(t, r.Counter(domain.CounterEntriesExtracted),
		r.Counter(domain.CounterEntriesEmitted)+r.Counter(domain.CounterEntriesNotEmitted))

	var names []string
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
	}
	assert.NotContains(t, names, PhaseSynthesize)
}

func TestRun_InvalidEntryIsReportedNotEmitted(t *testing.T) {
	t.Parallel()

	ex := extract.PageFunc(func(context.Context, string, string) (extract.Result, error) {
		return extract.Result{Entries: []domain.Entry{{Word: "x", Lang: "English", POS: "noun"}}}, nil
	})
	engine := &fakeEngine{pages: []domain.Page{{Title: "x"}}}
	sink := &memorySink{}

	cfg := defaultConfig()
	cfg.ExtractThesaurus = false
	res, err := newTestPipeline(t, engine, ex, cfg, nil).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Empty(t, sink.entries)
	assert.Equal(t, 1, res.Report.Counter(domain.CounterInvalidEntries))
	assert.Equal(t, 1, res.Report.MessageTexts[MsgInvalidEntry])
}

func TestRun_IndexOnly(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{pages: corpusPages}
	sink := &memorySink{}
	cfg := defaultConfig()
	cfg.IndexOnly = true

	res, err := newTestPipeline(t, engine, basicExtractor(t), cfg, nil).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.indexCalls)
	assert.Empty(t, sink.entries)
	assert.Equal(t, len(corpusPages), res.Report.Counter(domain.CounterPagesIndexed))
	require.Len(t, res.Phases, 1)
}

func TestRun_ReuseIndex(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{pages: corpusPages, indexed: true}
	cfg := defaultConfig()
	cfg.ReuseIndex = true
	cfg.IndexOnly = true

	_, err := newTestPipeline(t, engine, basicExtractor(t), cfg, nil).Run(context.Background(), &memorySink{})
	require.NoError(t, err)
	assert.Zero(t, engine.indexCalls)
}

func TestRun_SkipExtraction(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{pages: corpusPages}
	sink := &memorySink{}
	cfg := defaultConfig()
	cfg.SkipExtraction = true

	res, err := newTestPipeline(t, engine, basicExtractor(t), cfg, nil).Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Empty(t, sink.entries)
	assert.Equal(t, 2, res.Report.Counter(domain.CounterRelationRecords))
	assert.Zero(t, res.Report.Counter(domain.CounterPagesSeen))
}

func TestRun_IndexErrorIsFatal(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{indexErr: domain.ErrCorpusUnreadable}
	_, err := newTestPipeline(t, engine, basicExtractor(t), defaultConfig(), nil).Run(context.Background(), &memorySink{})
	require.ErrorIs(t, err, domain.ErrCorpusUnreadable)
}

func TestRun_WalkErrorIsFatal(t *testing.T) {
	t.Parallel()

	walkErr := errors.New("database disk image is malformed")
	engine := &fakeEngine{pages: corpusPages, walkErr: walkErr}
	cfg := defaultConfig()
	cfg.ExtractThesaurus = false

	_, err := newTestPipeline(t, engine, basicExtractor(t), cfg, nil).Run(context.Background(), &memorySink{})
	require.ErrorIs(t, err, walkErr)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ex := extract.PageFunc(func(context.Context, string, string) (extract.Result, error) {
		cancel()
		return extract.Result{}, nil
	})
	var pages []domain.Page
	for i := range 100 {
		pages = append(pages, domain.Page{Title: fmt.Sprintf("c%03d", i)})
	}
	engine := &fakeEngine{pages: pages}
	cfg := defaultConfig()
	cfg.ExtractThesaurus = false

	res, err := newTestPipeline(t, engine, ex, cfg, nil).Run(ctx, &memorySink{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Report.Counter(domain.CounterPagesSeen), 100)
}

func TestRun_CancelledPagesAreNotFailures(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ex := extract.PageFunc(func(ctx context.Context, _, _ string) (extract.Result, error) {
		cancel()
		return extract.Result{}, ctx.Err()
	})
	var pages []domain.Page
	for i := range 20 {
		pages = append(pages, domain.Page{Title: fmt.Sprintf("c%02d", i)})
	}
	engine := &fakeEngine{pages: pages}
	cfg := defaultConfig()
	cfg.ExtractThesaurus = false
	cfg.MaxFailureRatio = 0.01
	cfg.MinPagesForFailureRatio = 1

	res, err := newTestPipeline(t, engine, ex, cfg, nil).Run(ctx, &memorySink{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, domain.ErrSystematicFailure)

	r := res.Report
	assert.Zero(t, r.Counter(domain.CounterPagesFailed))
	assert.Empty(t, r.FailedTitles)
	assert.Empty(t, r.Messages[domain.MessageError])
	assert.Equal(t, r.Counter(domain.CounterPagesSeen), r.Skipped[domain.SkipCancelled])
	assert.Positive(t, r.Skipped[domain.SkipCancelled])
}

func TestRun_XRefErrorIsFatal(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	ex := extract.PageFunc(func(context.Context, string, string) (extract.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return extract.Result{}, nil
	})
	xrefErr := errors.New("thesaurus table unreadable")
	engine := &fakeEngine{
		pages: corpusPages,
		queryErr: func(q domain.PageQuery) error {
			if slices.Contains(q.Namespaces, "Thesaurus") {
				return xrefErr
			}
			return nil
		},
	}
	sink := &memorySink{}

	res, err := newTestPipeline(t, engine, ex, defaultConfig(), nil).Run(context.Background(), sink)
	require.ErrorIs(t, err, xrefErr)

	assert.Zero(t, calls)
	assert.Empty(t, sink.entries)

	var names []string
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
	}
	assert.Equal(t, []string{PhaseIndex, PhaseXRef}, names)
	assert.ErrorIs(t, res.Phases[1].Err, xrefErr)
}

func TestProgress_Tick(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	p := newProgress(slog.New(slog.DiscardHandler), 100, time.Second, func() time.Time { return clock })

	assert.False(t, p.tick(1), "within interval")
	clock = clock.Add(2 * time.Second)
	assert.True(t, p.tick(10))
	assert.False(t, p.tick(11))
	assert.True(t, p.tick(100), "final page always logs")
}
