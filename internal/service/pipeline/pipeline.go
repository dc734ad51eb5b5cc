// Package pipeline runs the full corpus pass: indexing, cross-reference
// building, parallel page dispatch and synthesis of thesaurus-only entries.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/wiktlex/internal/corpus"
	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/internal/service/dispatch"
	"github.com/heartmarshall/wiktlex/internal/service/stats"
	"github.com/heartmarshall/wiktlex/internal/service/synth"
	"github.com/heartmarshall/wiktlex/internal/service/xref"
)

// Message texts recorded by the orchestrator.
const (
	MsgInvalidEntry = "invalid entry"
)

// Phase names, in execution order.
const (
	PhaseIndex      = "index"
	PhaseXRef       = "xref"
	PhaseExtract    = "extract"
	PhaseSynthesize = "synthesize"
)

// ---------------------------------------------------------------------------
// Consumer-side interfaces
// ---------------------------------------------------------------------------

// CorpusEngine owns the page index.
type CorpusEngine interface {
	Index(ctx context.Context) (corpus.IndexResult, error)
	Indexed(ctx context.Context) (bool, error)
	Walk(ctx context.Context, q domain.PageQuery, fn func(domain.Page) error) error
	Count(ctx context.Context, q domain.PageQuery) (int, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, page domain.Page, rel dispatch.RelationLookup) dispatch.Result
}

type xrefBuilder interface {
	Build(ctx context.Context, corpus xref.PageWalker) (*xref.Index, domain.PageStats, error)
}

type synthesizer interface {
	Synthesize(ctx context.Context, ix synth.RelationIndex, seen domain.KeySet, emit synth.EmitFunc) (domain.PageStats, error)
}

// EntrySink receives every valid entry. It is only ever called from the
// aggregating goroutine.
type EntrySink interface {
	Emit(ctx context.Context, e domain.Entry) error
}

// Observer is notified about progress. Implementations must be cheap; they
// run on the aggregating goroutine.
type Observer interface {
	PageProcessed(outcome string, elapsed time.Duration)
	EntryEmitted(source string)
}

// Page outcomes passed to Observer.PageProcessed.
const (
	OutcomeOK       = "ok"
	OutcomeRedirect = "redirect"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

type nopObserver struct{}

func (nopObserver) PageProcessed(string, time.Duration) {}
func (nopObserver) EntryEmitted(string)                 {}

// ---------------------------------------------------------------------------
// Config / results
// ---------------------------------------------------------------------------

// Config controls one run.
type Config struct {
	Workers int
	// ExtractNamespaces selects the pages dispatched in the main pass.
	ExtractNamespaces []string
	ExtractThesaurus  bool

	ReuseIndex     bool
	IndexOnly      bool
	SkipExtraction bool

	// MaxFailureRatio aborts the run when failed/dispatched exceeds it after
	// MinPagesForFailureRatio pages. Zero disables the check.
	MaxFailureRatio         float64
	MinPagesForFailureRatio int

	MessageCap       int
	ProgressInterval time.Duration
}

// PhaseResult holds the outcome of a single pipeline phase.
type PhaseResult struct {
	Name     string
	Items    int
	Duration time.Duration
	Err      error
}

// Result is what Run hands back, including on failure.
type Result struct {
	Report *stats.Report
	// Seen holds the identity keys of every entry emitted by the main pass.
	Seen   domain.KeySet
	Phases []PhaseResult
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline wires the passes together. One Pipeline may run many times; all
// per-run state lives in Run.
type Pipeline struct {
	log      *slog.Logger
	engine   CorpusEngine
	dispatch dispatcher
	xref     xrefBuilder
	synth    synthesizer
	observer Observer
	cfg      Config
	now      func() time.Time
}

// New creates a Pipeline. A nil observer is replaced by a no-op.
func New(
	log *slog.Logger,
	engine CorpusEngine,
	d dispatcher,
	x xrefBuilder,
	s synthesizer,
	observer Observer,
	cfg Config,
) *Pipeline {
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		log:      log.With("service", "pipeline"),
		engine:   engine,
		dispatch: d,
		xref:     x,
		synth:    s,
		observer: observer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run executes the passes in order and returns the aggregated result. The
// result is non-nil even when err is set so callers can still write the
// report.
func (p *Pipeline) Run(ctx context.Context, sink EntrySink) (*Result, error) {
	res := &Result{
		Report: stats.New(p.cfg.MessageCap),
		Seen:   make(domain.KeySet),
	}
	defer res.Report.Finalize()

	// Step 1: Build or reuse the page index.
	if err := p.phase(res, PhaseIndex, func() (int, error) { return p.index(ctx, res.Report) }); err != nil {
		return res, err
	}
	if p.cfg.IndexOnly {
		p.log.Info("index only, stopping")
		return res, nil
	}

	// Step 2: Cross-reference index over thesaurus pages.
	var ix *xref.Index
	if p.cfg.ExtractThesaurus {
		err := p.phase(res, PhaseXRef, func() (int, error) {
			built, st, err := p.xref.Build(ctx, p.engine)
			res.Report.MergeStats(st)
			if err != nil {
				return 0, err
			}
			ix = built
			return built.Total(), nil
		})
		if err != nil {
			return res, err
		}
	}
	if p.cfg.SkipExtraction {
		p.log.Info("extraction skipped")
		return res, nil
	}

	// Step 3: Parallel main pass.
	if err := p.phase(res, PhaseExtract, func() (int, error) { return p.extract(ctx, sink, res, ix) }); err != nil {
		return res, err
	}

	// Step 4: Synthetic entries for thesaurus-only words.
	if ix != nil {
		err := p.phase(res, PhaseSynthesize, func() (int, error) {
			emitted := 0
			st, err := p.synth.Synthesize(ctx, ix, res.Seen, func(ctx context.Context, e domain.Entry) error {
				ok, err := p.emit(ctx, sink, res.Report, e)
				if ok {
					emitted++
				}
				return err
			})
			res.Report.MergeStats(st)
			return emitted, err
		})
		if err != nil {
			return res, err
		}
	}

	p.log.Info("pipeline completed",
		slog.Int("phases_run", len(res.Phases)),
		slog.Int("entries_emitted", res.Report.Counter(domain.CounterEntriesEmitted)),
	)
	return res, nil
}

func (p *Pipeline) phase(res *Result, name string, fn func() (int, error)) error {
	start := p.now()
	p.log.Info("starting phase", slog.String("phase", name))

	items, err := fn()
	r := PhaseResult{Name: name, Items: items, Duration: p.now().Sub(start), Err: err}
	res.Phases = append(res.Phases, r)

	if err != nil {
		p.log.Warn("phase failed",
			slog.String("phase", name),
			slog.String("error", err.Error()),
			slog.Duration("duration", r.Duration),
		)
		return fmt.Errorf("%s: %w", name, err)
	}
	p.log.Info("phase completed",
		slog.String("phase", name),
		slog.Int("items", items),
		slog.Duration("duration", r.Duration),
	)
	return nil
}

func (p *Pipeline) index(ctx context.Context, report *stats.Report) (int, error) {
	if p.cfg.ReuseIndex {
		ok, err := p.engine.Indexed(ctx)
		if err != nil {
			return 0, err
		}
		if ok {
			p.log.Info("reusing existing page index")
			return 0, nil
		}
		p.log.Info("no complete page index found, rebuilding")
	}
	ir, err := p.engine.Index(ctx)
	if err != nil {
		return 0, err
	}
	report.Inc(domain.CounterPagesIndexed, ir.Saved)
	return ir.Saved, nil
}

// ---------------------------------------------------------------------------
// Main pass
// ---------------------------------------------------------------------------

type pageResult struct {
	dispatch.Result
	elapsed time.Duration
}

var errStopped = errors.New("dispatch stopped")

// extract fans pages out to the worker pool and folds every result on the
// calling goroutine. Once started, every dispatched page is merged even if
// the run is stopping. A nil ix disables thesaurus linkage injection.
func (p *Pipeline) extract(ctx context.Context, sink EntrySink, res *Result, ix *xref.Index) (int, error) {
	var rel dispatch.RelationLookup
	if ix != nil {
		rel = ix
	}
	q := domain.PageQuery{Namespaces: p.cfg.ExtractNamespaces, IncludeRedirects: true}

	total, err := p.engine.Count(ctx, q)
	if err != nil {
		return 0, err
	}
	p.log.Info("dispatching pages", slog.Int("pages", total), slog.Int("workers", p.cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	feedCtx, stopFeed := context.WithCancel(gctx)
	defer stopFeed()

	pages := make(chan domain.Page, p.cfg.Workers*2)
	results := make(chan pageResult, p.cfg.Workers*2)

	// Producer.
	g.Go(func() error {
		defer close(pages)
		err := p.engine.Walk(feedCtx, q, func(page domain.Page) error {
			select {
			case pages <- page:
				return nil
			case <-feedCtx.Done():
				return errStopped
			}
		})
		if err != nil && feedCtx.Err() != nil {
			return nil
		}
		return err
	})

	// Workers. In-flight pages run against ctx so a stop requested by the
	// aggregator never turns them into failures.
	workers := make(chan struct{}, p.cfg.Workers)
	for range p.cfg.Workers {
		g.Go(func() error {
			defer func() { workers <- struct{}{} }()
			for page := range pages {
				start := p.now()
				r := p.dispatch.Dispatch(ctx, page, rel)
				results <- pageResult{Result: r, elapsed: p.now().Sub(start)}
			}
			return nil
		})
	}
	go func() {
		for range p.cfg.Workers {
			<-workers
		}
		close(results)
	}()

	// Aggregator.
	var stopErr error
	stop := func(err error) {
		if stopErr == nil {
			stopErr = err
			stopFeed()
		}
	}
	prog := newProgress(p.log, total, p.cfg.ProgressInterval, p.now)
	emitted := 0

	for r := range results {
		res.Report.MergePage(r.Stats)
		p.observer.PageProcessed(outcome(r.Result), r.elapsed)

		for _, e := range r.Entries {
			if stopErr != nil {
				res.Report.Inc(domain.CounterEntriesNotEmitted, 1)
				continue
			}
			ok, err := p.emit(ctx, sink, res.Report, e)
			if err != nil {
				res.Report.Inc(domain.CounterEntriesNotEmitted, 1)
				stop(err)
				continue
			}
			if ok {
				emitted++
				if k, has := e.IdentityKey(); has {
					res.Seen.Add(k)
				}
			}
		}

		// Pages cut short by cancellation are skips, so the failure ratio
		// is only judged while the run is live.
		if ctx.Err() != nil {
			stop(ctx.Err())
		} else if err := p.checkFailures(res.Report); err != nil {
			stop(err)
		}
		prog.tick(res.Report.Counter(domain.CounterPagesSeen))
	}

	walkErr := g.Wait()
	switch {
	case stopErr != nil:
		return emitted, stopErr
	case walkErr != nil:
		return emitted, fmt.Errorf("walk pages: %w", walkErr)
	case ctx.Err() != nil:
		return emitted, ctx.Err()
	}
	return emitted, nil
}

// emit validates e and hands it to the sink. ok reports whether the entry
// reached the sink.
func (p *Pipeline) emit(ctx context.Context, sink EntrySink, report *stats.Report, e domain.Entry) (bool, error) {
	if err := e.Validate(); err != nil {
		report.Inc(domain.CounterInvalidEntries, 1)
		report.AddMessage(domain.Message{
			Kind:   domain.MessageWarning,
			Title:  entryTitle(e),
			Text:   MsgInvalidEntry,
			Detail: err.Error(),
		})
		return false, nil
	}
	if err := sink.Emit(ctx, e); err != nil {
		return false, fmt.Errorf("emit %q: %w", entryTitle(e), err)
	}
	report.Inc(domain.CounterEntriesEmitted, 1)
	p.observer.EntryEmitted(cmp.Or(e.Source, domain.SourcePage))
	return true, nil
}

func (p *Pipeline) checkFailures(report *stats.Report) error {
	if p.cfg.MaxFailureRatio <= 0 {
		return nil
	}
	ratio, dispatched := report.FailureRatio()
	if dispatched < p.cfg.MinPagesForFailureRatio || dispatched == 0 {
		return nil
	}
	if ratio > p.cfg.MaxFailureRatio {
		return fmt.Errorf("%w: %d of %d pages failed (%.1f%% > %.1f%%)",
			domain.ErrSystematicFailure,
			report.Counter(domain.CounterPagesFailed), dispatched,
			ratio*100, p.cfg.MaxFailureRatio*100)
	}
	return nil
}

func outcome(r dispatch.Result) string {
	switch {
	case r.Stats.SkipReason != "":
		return OutcomeSkipped
	case r.Stats.Failed:
		return OutcomeFailed
	case r.Stats.Counters[domain.CounterRedirects] > 0:
		return OutcomeRedirect
	}
	return OutcomeOK
}

func entryTitle(e domain.Entry) string {
	if e.Word != "" {
		return e.Word
	}
	return e.Title
}
