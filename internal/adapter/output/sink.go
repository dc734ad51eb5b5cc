// Package output holds the entry sinks that do not need a database: JSON
// lines on a stream and the fan-out used to combine sinks.
package output

import (
	"context"
	"errors"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// Sink receives emitted entries and is finished exactly once with the run
// outcome.
type Sink interface {
	Emit(ctx context.Context, e domain.Entry) error
	Finish(ctx context.Context, runErr error) error
}

// Multi emits every entry to all sinks in order. The first failing sink stops
// the emit.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e domain.Entry) error {
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Finish finishes every sink, even when earlier ones fail.
func (m Multi) Finish(ctx context.Context, runErr error) error {
	var errs []error
	for _, s := range m {
		if err := s.Finish(ctx, runErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to Sink. Finish is a no-op.
type Func func(ctx context.Context, e domain.Entry) error

func (f Func) Emit(ctx context.Context, e domain.Entry) error { return f(ctx, e) }
func (f Func) Finish(context.Context, error) error            { return nil }

// Discard drops every entry.
var Discard Sink = Func(func(context.Context, domain.Entry) error { return nil })
