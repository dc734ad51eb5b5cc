package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/wiktlex/internal/adapter/kafka"
	"github.com/heartmarshall/wiktlex/internal/adapter/metrics"
	"github.com/heartmarshall/wiktlex/internal/adapter/output"
	"github.com/heartmarshall/wiktlex/internal/adapter/postgres"
	"github.com/heartmarshall/wiktlex/internal/adapter/postgres/lexentry"
	"github.com/heartmarshall/wiktlex/internal/adapter/sqlite/pageindex"
	"github.com/heartmarshall/wiktlex/internal/config"
	"github.com/heartmarshall/wiktlex/internal/corpus"
	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/internal/extract/basic"
	"github.com/heartmarshall/wiktlex/internal/langcode"
	"github.com/heartmarshall/wiktlex/internal/service/dispatch"
	"github.com/heartmarshall/wiktlex/internal/service/pipeline"
	"github.com/heartmarshall/wiktlex/internal/service/stats"
	"github.com/heartmarshall/wiktlex/internal/service/synth"
	"github.com/heartmarshall/wiktlex/internal/service/xref"
	"github.com/heartmarshall/wiktlex/pkg/ctxutil"
)

// titlePrefix marks a page file whose first line supplies the page title.
const titlePrefix = "TITLE: "

// App owns the long-lived resources of one invocation.
type App struct {
	cfg    *config.Config
	log    *slog.Logger
	langs  *langcode.Table
	store  *pageindex.Store
	engine *corpus.Engine

	extractor *basic.Extractor
	dispatch  *dispatch.Service
}

// New opens the page index and builds the services. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	langs, err := loadLanguages(cfg.Output.LanguagesPath)
	if err != nil {
		return nil, err
	}

	store, err := pageindex.Open(ctx, cfg.Corpus.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open page index: %w", err)
	}

	engine := corpus.New(store, nil, corpus.Config{
		DumpPath:       cfg.Corpus.DumpPath,
		SaveNamespaces: cfg.Corpus.SaveNamespaces,
		BatchSize:      cfg.Corpus.IndexBatchSize,
	}, log)

	extractor := basic.New(langs)
	d := dispatch.NewService(log, extractor, dispatch.Policy{
		NamespaceDenylist: cfg.Pipeline.NamespaceDenylist,
		SuffixDenylist:    cfg.Pipeline.SuffixDenylist,
		SlowThreshold:     cfg.Pipeline.SlowPageThreshold,
		LanguageCodes:     cfg.Pipeline.LanguageCodes,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		langs:     langs,
		store:     store,
		engine:    engine,
		extractor: extractor,
		dispatch:  d,
	}, nil
}

func loadLanguages(path string) (*langcode.Table, error) {
	if path == "" {
		return langcode.Default()
	}
	t, err := langcode.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load languages: %w", err)
	}
	return t, nil
}

// Close releases the page index.
func (a *App) Close() error {
	return a.store.Close()
}

// ---------------------------------------------------------------------------
// run / index
// ---------------------------------------------------------------------------

// Run executes the configured pipeline, writes the report and finishes all
// sinks. The report is written even when the run fails.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxutil.WithRunID(ctx, uuid.New())
	a.log.InfoContext(ctx, "starting wiktlex",
		slog.String("version", BuildVersion()),
		slog.String("dump", a.cfg.Corpus.DumpPath),
		slog.String("index", a.store.Path()),
		slog.Int("workers", a.cfg.Pipeline.Workers),
	)

	var observer pipeline.Observer
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()
	if a.cfg.Metrics.Addr != "" {
		m := metrics.New()
		observer = m
		g.Go(func() error { return m.Serve(serveCtx, a.cfg.Metrics.Addr, a.log) })
	}

	sink, closeSinks, err := a.openSinks(ctx)
	if err != nil {
		return err
	}
	defer closeSinks()

	p := pipeline.New(a.log, a.engine, a.dispatch,
		xref.NewService(a.log, a.extractor, a.cfg.Pipeline.ThesaurusNamespace),
		synth.NewService(a.log, a.langs, a.cfg.Pipeline.LanguageCodes),
		observer,
		pipeline.Config{
			Workers:                 a.cfg.Pipeline.Workers,
			ExtractNamespaces:       a.cfg.Pipeline.ExtractNamespaces,
			ExtractThesaurus:        a.cfg.Pipeline.ExtractThesaurus,
			ReuseIndex:              a.cfg.Corpus.ReuseIndex,
			IndexOnly:               a.cfg.Pipeline.IndexOnly,
			SkipExtraction:          a.cfg.Pipeline.SkipExtraction,
			MaxFailureRatio:         a.cfg.Pipeline.MaxFailureRatio,
			MinPagesForFailureRatio: a.cfg.Pipeline.MinPagesForFailureRatio,
			MessageCap:              a.cfg.Pipeline.MessageCap,
			ProgressInterval:        a.cfg.Pipeline.ProgressInterval,
		},
	)

	res, runErr := p.Run(gctx, sink)

	// Sinks and the report are finished on a fresh context so a cancelled
	// run still flushes what it produced.
	finishErr := sink.Finish(context.WithoutCancel(ctx), runErr)
	reportErr := a.writeReport(res.Report)
	res.Report.LogSummary(a.log, 10)

	stopServe()
	serveErr := g.Wait()
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}

	return errors.Join(runErr, finishErr, reportErr, serveErr)
}

// openSinks builds the JSON lines sink plus the optional database and Kafka
// sinks. The returned func releases connections after Finish.
func (a *App) openSinks(ctx context.Context) (output.Sink, func(), error) {
	var (
		sinks   output.Multi
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (output.Sink, func(), error) {
		_ = sinks.Finish(ctx, err)
		closeAll()
		return nil, func() {}, err
	}

	if a.cfg.Pipeline.IndexOnly {
		return output.Discard, closeAll, nil
	}

	jsonl, err := output.CreateJSONL(a.cfg.Output.Path, a.cfg.Output.HumanReadable)
	if err != nil {
		return fail(err)
	}
	sinks = append(sinks, jsonl)

	if a.cfg.Database.DSN != "" {
		pool, err := postgres.Connect(ctx, a.cfg.Database, a.log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)

		repo := lexentry.New(pool, postgres.NewTxManager(pool))
		pg, err := lexentry.NewSink(ctx, repo, a.log, a.cfg.Corpus.DumpPath, a.cfg.Database.BatchSize)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, pg)
	}

	if len(a.cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, kafka.NewSink(a.cfg.Kafka, a.log))
	}

	return sinks, closeAll, nil
}

func (a *App) writeReport(r *stats.Report) error {
	path := a.cfg.Output.ReportPath
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := r.WriteJSON(f, true); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	a.log.Info("report written", slog.String("path", path))
	return nil
}

// ---------------------------------------------------------------------------
// page
// ---------------------------------------------------------------------------

// ExtractPage runs a single page through the dispatcher and writes its entries
// to w. arg is either a file (optionally starting with a "TITLE: " line) or a
// title looked up in the page index.
func (a *App) ExtractPage(ctx context.Context, arg string, w io.Writer) (dispatch.Result, error) {
	page, err := a.loadPage(ctx, arg)
	if err != nil {
		return dispatch.Result{}, err
	}

	res := a.dispatch.Dispatch(ctx, page, nil)

	sink := output.NewJSONL(w, a.cfg.Output.HumanReadable)
	for _, e := range res.Entries {
		if err := sink.Emit(ctx, e); err != nil {
			return res, err
		}
	}
	if err := sink.Finish(ctx, nil); err != nil {
		return res, err
	}

	for _, m := range res.Stats.Messages {
		a.log.Info(m.Text,
			slog.String("kind", string(m.Kind)),
			slog.String("title", m.Title),
			slog.String("section", m.Section),
		)
	}
	return res, nil
}

func (a *App) loadPage(ctx context.Context, arg string) (domain.Page, error) {
	data, err := os.ReadFile(arg)
	switch {
	case err == nil:
		return pageFromFile(arg, string(data)), nil
	case !errors.Is(err, os.ErrNotExist):
		return domain.Page{}, fmt.Errorf("read page file: %w", err)
	}

	page, err := a.engine.Page(ctx, arg)
	if err != nil {
		return domain.Page{}, fmt.Errorf("page %q: %w", arg, err)
	}
	return page, nil
}

// pageFromFile builds a page from a file. The title comes from a leading
// "TITLE: " line, otherwise from the file name.
func pageFromFile(path, data string) domain.Page {
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	body := data

	sc := bufio.NewScanner(strings.NewReader(data))
	if sc.Scan() {
		if t, ok := strings.CutPrefix(sc.Text(), titlePrefix); ok {
			title = strings.TrimSpace(t)
			_, body, _ = strings.Cut(data, "\n")
		}
	}

	return domain.Page{
		Title: title,
		Model: domain.ContentModelWikitext,
		Body:  body,
	}
}
