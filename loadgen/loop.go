package loadgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/streamgen/messaging"
)

// DefaultBurstSize is the number of messages a burst publishes when no count is given
const DefaultBurstSize = 10

const defaultInterval = time.Second

// Stats summarises a Run
type Stats struct {
	Attempts  int
	Published int
	Failed    int
}

// BurstError reports a burst that stopped before publishing every message.
// Messages published before the failure are not rolled back.
type BurstError struct {
	Stream    string
	Published int
	Requested int
	Err       error
}

func (e *BurstError) Error() string {
	return fmt.Sprintf("burst to %s stopped after %d of %d messages: %v", e.Stream, e.Published, e.Requested, e.Err)
}

func (e *BurstError) Unwrap() error {
	return e.Err
}

// Loop publishes to streams chosen by a selection policy
type Loop struct {
	publisher *messaging.MessagePublisher
	policy    messaging.SelectionPolicy
	pacer     Pacer
	burstSize int
	logger    *slog.Logger
}

// LoopOption configures the Loop
type LoopOption func(*Loop)

// WithPacer sets the pacer consulted between attempts
func WithPacer(pacer Pacer) LoopOption {
	return func(l *Loop) {
		l.pacer = pacer
	}
}

// WithBurstSize sets the default burst size
func WithBurstSize(size int) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.burstSize = size
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a loop paced at one attempt per second
func NewLoop(publisher *messaging.MessagePublisher, policy messaging.SelectionPolicy, options ...LoopOption) *Loop {
	l := &Loop{
		publisher: publisher,
		policy:    policy,
		burstSize: DefaultBurstSize,
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(l)
	}

	if l.pacer == nil {
		l.pacer = NewIntervalPacer(defaultInterval, 1)
	}

	return l
}

// BurstSize returns the default burst size
func (l *Loop) BurstSize() int {
	return l.burstSize
}

// Run publishes until maxAttempts have been made, ctx is cancelled or a
// publish fails. Zero maxAttempts runs until cancelled. Cancellation is a
// normal stop and returns a nil error; a failed publish is returned and ends
// the run. Run must not be called concurrently on the same Loop.
func (l *Loop) Run(ctx context.Context, maxAttempts int) (Stats, error) {
	var stats Stats

	l.logger.Info("publish loop started", "max_attempts", maxAttempts)
	defer func() {
		l.logger.Info("publish loop stopped",
			"attempts", stats.Attempts,
			"published", stats.Published,
			"failed", stats.Failed)
	}()

	for maxAttempts == 0 || stats.Attempts < maxAttempts {
		if ctx.Err() != nil {
			return stats, nil
		}

		stats.Attempts++
		_, stream, err := l.publisher.Publish(ctx, l.policy)
		if err != nil {
			stats.Failed++
			if ctx.Err() != nil {
				return stats, nil
			}
			if errors.Is(err, messaging.ErrNoTargetsConfigured) {
				return stats, err
			}
			return stats, fmt.Errorf("attempt %d to %s: %w", stats.Attempts, stream, err)
		}
		stats.Published++

		if maxAttempts != 0 && stats.Attempts == maxAttempts {
			break
		}
		if err := l.pacer.Wait(ctx, stats.Attempts); err != nil {
			return stats, nil
		}
	}

	return stats, nil
}

// Burst publishes count messages to stream back to back. A count below 1
// uses the default burst size. The first failure aborts the remaining
// messages and is returned as a *BurstError.
func (l *Loop) Burst(ctx context.Context, stream string, count int) (int, error) {
	if count < 1 {
		count = l.burstSize
	}

	policy := messaging.RequestSpecified{Name: stream}
	for published := 0; published < count; published++ {
		if err := ctx.Err(); err != nil {
			return published, &BurstError{Stream: stream, Published: published, Requested: count, Err: err}
		}
		if _, _, err := l.publisher.Publish(ctx, policy); err != nil {
			return published, &BurstError{Stream: stream, Published: published, Requested: count, Err: err}
		}
	}

	l.logger.Debug("burst published", "stream", stream, "count", count)
	return count, nil
}
