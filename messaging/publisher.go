package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/streamgen/contracts"
)

// PublishObserver is notified of every publish attempt
type PublishObserver interface {
	ObservePublish(stream string, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObservePublish(string, time.Duration, error) {}

// MessagePublisher builds an envelope and publishes it to one stream
type MessagePublisher struct {
	transport StreamPublisher
	factory   *EnvelopeFactory
	observer  PublishObserver
	logger    *slog.Logger
}

// PublisherOption configures the MessagePublisher
type PublisherOption func(*MessagePublisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *MessagePublisher) {
		p.logger = logger
	}
}

// WithPublishObserver sets the observer notified after every attempt
func WithPublishObserver(observer PublishObserver) PublisherOption {
	return func(p *MessagePublisher) {
		p.observer = observer
	}
}

// NewMessagePublisher creates a new message publisher
func NewMessagePublisher(transport StreamPublisher, factory *EnvelopeFactory, options ...PublisherOption) *MessagePublisher {
	if factory == nil {
		factory = NewEnvelopeFactory()
	}

	p := &MessagePublisher{
		transport: transport,
		factory:   factory,
		observer:  noopObserver{},
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// PublishTo publishes one freshly built envelope to stream and returns it
func (p *MessagePublisher) PublishTo(ctx context.Context, stream string) (*contracts.Envelope, error) {
	env, err := p.factory.CreateEnvelope()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = p.transport.Publish(ctx, stream, env)
	p.observer.ObservePublish(stream, time.Since(start), err)
	if err != nil {
		return env, fmt.Errorf("failed to publish %s to %s: %w", env.CorrelationID, stream, err)
	}

	p.logger.Info("published message",
		"stream", stream,
		"transaction_id", env.CorrelationID,
		"timestamp", env.CapturedAt,
		"data", string(env.Payload))

	return env, nil
}

// Publish resolves a target through policy and publishes one envelope to it
func (p *MessagePublisher) Publish(ctx context.Context, policy SelectionPolicy) (*contracts.Envelope, string, error) {
	stream, err := policy.Next()
	if err != nil {
		return nil, "", err
	}
	env, err := p.PublishTo(ctx, stream)
	return env, stream, err
}
