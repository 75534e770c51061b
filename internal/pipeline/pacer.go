package pipeline

import (
	"context"
	"time"
)

// DefaultEntityPause is the pause between entity analyses.
const DefaultEntityPause = 2 * time.Second

// Pacer throttles consecutive generation-heavy steps.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer pauses for a fixed interval on every Wait, however long the
// caller was idle before. It holds no state, so each coordinator may own one.
type IntervalPacer struct {
	interval time.Duration
}

// NewIntervalPacer creates an IntervalPacer. A non-positive interval never
// waits.
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	return &IntervalPacer{interval: max(interval, 0)}
}

// Wait blocks for the interval or until ctx is done.
func (p *IntervalPacer) Wait(ctx context.Context) error {
	if p.interval == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoPacer never waits.
type NoPacer struct{}

// Wait implements Pacer.
func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
