// Package metrics exposes pipeline progress as Prometheus collectors and
// serves them for scraping while a run is in progress.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process. It implements the pipeline
// observer.
type Metrics struct {
	registry *prometheus.Registry

	PagesTotal     *prometheus.CounterVec
	PageDuration   *prometheus.HistogramVec
	EntriesEmitted *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiktlex_pages_total",
				Help: "Pages dispatched by outcome (ok, redirect, skipped, failed).",
			},
			[]string{"outcome"},
		),
		PageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wiktlex_page_duration_seconds",
				Help:    "Time spent dispatching one page in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 100},
			},
			[]string{"outcome"},
		),
		EntriesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiktlex_entries_emitted_total",
				Help: "Entries written to the output by source (page, thesaurus).",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.PagesTotal,
		m.PageDuration,
		m.EntriesEmitted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// PageProcessed records one dispatched page.
func (m *Metrics) PageProcessed(outcome string, elapsed time.Duration) {
	m.PagesTotal.WithLabelValues(outcome).Inc()
	m.PageDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// EntryEmitted records one entry that reached the sink.
func (m *Metrics) EntryEmitted(source string) {
	m.EntriesEmitted.WithLabelValues(source).Inc()
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("exposing prometheus metrics", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
