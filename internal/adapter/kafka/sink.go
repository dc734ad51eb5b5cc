// Package kafka publishes emitted entries to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/heartmarshall/wiktlex/internal/config"
	"github.com/heartmarshall/wiktlex/internal/domain"
	"github.com/heartmarshall/wiktlex/pkg/ctxutil"
)

const defaultBatch = 100

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes entries as JSON messages keyed by word, language and part of
// speech, so every record of one concept lands on the same partition.
type Sink struct {
	writer messageWriter
	logger *slog.Logger
	batch  int
	buf    []kafka.Message
	sent   int
}

// NewSink creates a Sink for cfg.Topic.
func NewSink(cfg config.KafkaConfig, logger *slog.Logger) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    defaultBatch,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return newSink(w, logger.With("component", "kafka-sink", "topic", cfg.Topic), defaultBatch)
}

func newSink(w messageWriter, logger *slog.Logger, batch int) *Sink {
	return &Sink{writer: w, logger: logger, batch: batch, buf: make([]kafka.Message, 0, batch)}
}

// Key returns the partition key for e.
func Key(e domain.Entry) string {
	if k, ok := e.IdentityKey(); ok {
		return k.Word + "|" + k.Lang + "|" + k.POS
	}
	return e.Title
}

// Emit queues e and writes a batch once enough messages have accumulated.
func (s *Sink) Emit(ctx context.Context, e domain.Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}
	source := e.Source
	if source == "" {
		source = domain.SourcePage
	}
	headers := []kafka.Header{{Key: "source", Value: []byte(source)}}
	if id, ok := ctxutil.RunIDFromCtx(ctx); ok {
		headers = append(headers, kafka.Header{Key: "run_id", Value: []byte(id.String())})
	}
	s.buf = append(s.buf, kafka.Message{
		Key:     []byte(Key(e)),
		Value:   value,
		Headers: headers,
	})
	if len(s.buf) < s.batch {
		return nil
	}
	return s.flush(ctx)
}

func (s *Sink) flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, s.buf...); err != nil {
		s.logger.Error("failed to publish batch",
			"count", len(s.buf),
			"error", err,
		)
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	s.logger.Debug("batch published", "count", len(s.buf))
	s.sent += len(s.buf)
	s.buf = s.buf[:0]
	return nil
}

// Finish publishes what is still buffered and closes the writer.
func (s *Sink) Finish(ctx context.Context, _ error) error {
	flushErr := s.flush(ctx)
	closeErr := s.writer.Close()
	s.logger.Info("kafka sink closed", "sent", s.sent)
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing kafka writer: %w", closeErr)
	}
	return nil
}
