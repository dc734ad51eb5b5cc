package pipeline

import (
	"fmt"
	"log/slog"
	"time"
)

// progress logs throughput and an estimated time remaining at most once per
// interval.
type progress struct {
	log      *slog.Logger
	total    int
	interval time.Duration
	now      func() time.Time
	start    time.Time
	last     time.Time
}

func newProgress(log *slog.Logger, total int, interval time.Duration, now func() time.Time) *progress {
	t := now()
	return &progress{log: log, total: total, interval: interval, now: now, start: t, last: t}
}

// tick reports done pages. It returns true when a line was logged.
func (p *progress) tick(done int) bool {
	if p.interval <= 0 || done <= 0 {
		return false
	}
	t := p.now()
	if t.Sub(p.last) < p.interval && done < p.total {
		return false
	}
	p.last = t

	elapsed := t.Sub(p.start)
	attrs := []any{
		slog.Int("done", done),
		slog.Int("total", p.total),
		slog.Duration("elapsed", elapsed.Round(time.Second)),
	}
	if p.total > 0 {
		pct := float64(done) / float64(p.total) * 100
		attrs = append(attrs, slog.String("percent", fmt.Sprintf("%.1f%%", pct)))
		if done < p.total {
			remaining := time.Duration(float64(elapsed) / float64(done) * float64(p.total-done))
			attrs = append(attrs, slog.Duration("remaining", remaining.Round(time.Second)))
		}
	}
	p.log.Info("pages processed", attrs...)
	return true
}
