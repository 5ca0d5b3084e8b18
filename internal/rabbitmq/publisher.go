package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes messages to streams through the default exchange.
// It never retries: a failed attempt is returned to the caller as is.
type Publisher struct {
	pool           *ChannelPool
	publishTimeout time.Duration
	logger         *slog.Logger
}

// PublisherOption configures the publisher
type PublisherOption func(*Publisher)

// WithPublishTimeout bounds a single publish, including the wait for its confirm
func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.publishTimeout = timeout
	}
}

// WithPublisherLogger sets the publisher logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a new publisher
func NewPublisher(pool *ChannelPool, options ...PublisherOption) *Publisher {
	p := &Publisher{
		pool:           pool,
		publishTimeout: 10 * time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish sends msg to the stream named routingKey. On confirm-mode channels
// the message is mandatory and the call waits for the broker ack, so an
// unroutable message fails with ErrMessageReturned.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	return p.pool.Execute(ctx, func(ch *PooledChannel) error {
		return p.publishOn(ctx, ch, routingKey, msg)
	})
}

func (p *Publisher) publishOn(ctx context.Context, ch *PooledChannel, routingKey string, msg amqp.Publishing) error {
	fail := func(err error) error {
		return &PublishError{
			Exchange:   "",
			RoutingKey: routingKey,
			Mandatory:  ch.confirms,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	if !ch.confirms {
		if err := ch.PublishWithContext(ctx, "", routingKey, false, false, msg); err != nil {
			return fail(err)
		}
		return nil
	}

	drainReturns(ch.returns)

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", routingKey, true, false, msg)
	if err != nil {
		return fail(err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		// An outstanding confirm would be attributed to the next publish.
		_ = ch.Channel.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrPublishTimeout, err)
		}
		return fail(err)
	}
	if !acked {
		return fail(ErrPublishNotConfirmed)
	}

	// basic.return precedes the ack for the same message.
	select {
	case ret := <-ch.returns:
		p.logger.Debug("message returned", "routingKey", routingKey, "replyCode", ret.ReplyCode, "replyText", ret.ReplyText)
		return fail(fmt.Errorf("%w: %d %s", ErrMessageReturned, ret.ReplyCode, ret.ReplyText))
	default:
	}

	return nil
}

func drainReturns(returns chan amqp.Return) {
	for {
		select {
		case <-returns:
		default:
			return
		}
	}
}

// Close releases publisher resources. The channel pool is closed by its owner.
func (p *Publisher) Close() error {
	return nil
}
