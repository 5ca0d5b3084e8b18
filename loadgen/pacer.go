package loadgen

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer is consulted after every attempt and may block to bound throughput
type Pacer interface {
	Wait(ctx context.Context, attempt int) error
}

// NoPacing never blocks
type NoPacing struct{}

// Wait returns immediately unless ctx is already done
func (NoPacing) Wait(ctx context.Context, _ int) error {
	return ctx.Err()
}

// IntervalPacer lets at most every attempts through per interval
type IntervalPacer struct {
	limiter *rate.Limiter
	every   int
}

// NewIntervalPacer creates a pacer that pauses after every attempts so that
// each group starts at least interval after the previous one. An interval of
// zero or less disables pacing.
func NewIntervalPacer(interval time.Duration, every int) Pacer {
	if interval <= 0 {
		return NoPacing{}
	}
	if every < 1 {
		every = 1
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	// Spend the initial token so the first pause is a full interval.
	limiter.Allow()

	return &IntervalPacer{limiter: limiter, every: every}
}

// Wait blocks after every configured number of attempts
func (p *IntervalPacer) Wait(ctx context.Context, attempt int) error {
	if attempt%p.every != 0 {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
