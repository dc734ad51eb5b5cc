package lexentry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/pkg/ctxutil"
)

// store is the subset of Repo the sink needs.
type store interface {
	CreateRun(ctx context.Context, id uuid.UUID, dumpPath string) error
	AppendEntries(ctx context.Context, runID uuid.UUID, entries []domain.Entry) (int, error)
	FinishRun(ctx context.Context, id uuid.UUID, status string) error
}

// Sink buffers emitted entries and writes them to PostgreSQL in batches.
// It is not safe for concurrent use; the pipeline calls it from a single
// goroutine.
type Sink struct {
	store     store
	log       *slog.Logger
	runID     uuid.UUID
	batchSize int
	buf       []domain.Entry
	inserted  int
}

// NewSink registers a new run and returns a sink writing into it.
func NewSink(ctx context.Context, st store, log *slog.Logger, dumpPath string, batchSize int) (*Sink, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	id, ok := ctxutil.RunIDFromCtx(ctx)
	if !ok {
		id = uuid.New()
	}
	if err := st.CreateRun(ctx, id, dumpPath); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	s := &Sink{
		store:     st,
		log:       log.With("sink", "postgres", "run_id", id.String()),
		runID:     id,
		batchSize: batchSize,
		buf:       make([]domain.Entry, 0, batchSize),
	}
	s.log.Info("run registered", slog.String("dump", dumpPath))
	return s, nil
}

// RunID returns the id of the run this sink writes into.
func (s *Sink) RunID() uuid.UUID { return s.runID }

// Emit buffers e and flushes when the batch is full.
func (s *Sink) Emit(ctx context.Context, e domain.Entry) error {
	s.buf = append(s.buf, e)
	if len(s.buf) < s.batchSize {
		return nil
	}
	return s.flush(ctx)
}

func (s *Sink) flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	n, err := s.store.AppendEntries(ctx, s.runID, s.buf)
	if err != nil {
		return fmt.Errorf("append %d entries: %w", len(s.buf), err)
	}
	s.inserted += n
	s.buf = s.buf[:0]
	return nil
}

// Finish flushes the remaining entries and records the run outcome. A failed
// run keeps the rows written so far.
func (s *Sink) Finish(ctx context.Context, runErr error) error {
	flushErr := s.flush(ctx)

	status := StatusCompleted
	if runErr != nil || flushErr != nil {
		status = StatusFailed
	}
	if err := s.store.FinishRun(ctx, s.runID, status); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	s.log.Info("run finished", slog.String("status", status), slog.Int("inserted", s.inserted))
	return flushErr
}
