package rabbitmq

import (
	"context"
	"fmt"

	"github.com/glimte/streamgen/contracts"
	"github.com/glimte/streamgen/internal/rabbitmq"
	"github.com/glimte/streamgen/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Transport implements messaging.Transport for RabbitMQ streams
type Transport struct {
	manager    *rabbitmq.ConnectionManager
	pool       *rabbitmq.ChannelPool
	publisher  *rabbitmq.Publisher
	topology   *rabbitmq.TopologyManager
	streamArgs amqp.Table
}

// TransportConfig holds configuration for the transport
type TransportConfig struct {
	ConnectionOptions []rabbitmq.ConnectionOption
	PoolOptions       []rabbitmq.ChannelPoolOption
	PublisherOptions  []rabbitmq.PublisherOption
	StreamArguments   amqp.Table
}

// TransportOption configures the transport
type TransportOption func(*TransportConfig)

// WithConnectionOptions sets connection options
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConnectionOptions = append(cfg.ConnectionOptions, opts...)
	}
}

// WithPoolOptions sets channel pool options
func WithPoolOptions(opts ...rabbitmq.ChannelPoolOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.PoolOptions = append(cfg.PoolOptions, opts...)
	}
}

// WithPublisherOptions sets publisher options
func WithPublisherOptions(opts ...rabbitmq.PublisherOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.PublisherOptions = append(cfg.PublisherOptions, opts...)
	}
}

// WithStreamArguments adds declare arguments, such as retention limits, to every stream
func WithStreamArguments(args amqp.Table) TransportOption {
	return func(cfg *TransportConfig) {
		if cfg.StreamArguments == nil {
			cfg.StreamArguments = amqp.Table{}
		}
		for k, v := range args {
			cfg.StreamArguments[k] = v
		}
	}
}

// NewTransport connects to the broker and creates a RabbitMQ transport
func NewTransport(ctx context.Context, connectionString string, options ...TransportOption) (*Transport, error) {
	cfg := &TransportConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	manager := rabbitmq.NewConnectionManager(connectionString, cfg.ConnectionOptions...)
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pool, err := rabbitmq.NewChannelPool(manager, cfg.PoolOptions...)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("failed to create channel pool: %w", err)
	}

	return &Transport{
		manager:    manager,
		pool:       pool,
		publisher:  rabbitmq.NewPublisher(pool, cfg.PublisherOptions...),
		topology:   rabbitmq.NewTopologyManager(pool),
		streamArgs: cfg.StreamArguments,
	}, nil
}

// Publish implements messaging.StreamPublisher
func (t *Transport) Publish(ctx context.Context, stream string, envelope *contracts.Envelope) error {
	return t.publisher.Publish(ctx, stream, ToPublishing(envelope))
}

// DeleteStream implements messaging.StreamTopology
func (t *Transport) DeleteStream(ctx context.Context, name string) error {
	return t.topology.DeleteStream(ctx, name)
}

// DeclareStream implements messaging.StreamTopology
func (t *Transport) DeclareStream(ctx context.Context, name string) error {
	_, err := t.topology.DeclareStream(ctx, t.declaration(name))
	return err
}

// InspectStream implements messaging.StreamTopology
func (t *Transport) InspectStream(ctx context.Context, name string) (messaging.StreamInfo, error) {
	q, err := t.topology.InspectStream(ctx, t.declaration(name))
	if err != nil {
		return messaging.StreamInfo{}, err
	}
	return messaging.StreamInfo{Name: q.Name, Messages: q.Messages, Consumers: q.Consumers}, nil
}

// Manager returns the connection manager
func (t *Transport) Manager() *rabbitmq.ConnectionManager {
	return t.manager
}

// Pool returns the channel pool shared by all publishers
func (t *Transport) Pool() *rabbitmq.ChannelPool {
	return t.pool
}

// Lost fires when the broker connection drops
func (t *Transport) Lost() <-chan error {
	return t.manager.Lost()
}

// IsConnected returns connection status
func (t *Transport) IsConnected() bool {
	return t.manager.IsConnected()
}

// Close closes all resources
func (t *Transport) Close() error {
	t.publisher.Close()
	t.pool.Close()
	return t.manager.Close()
}

func (t *Transport) declaration(name string) rabbitmq.StreamDeclaration {
	return rabbitmq.StreamDeclaration{Name: name, Arguments: t.streamArgs}
}

// ToPublishing maps an envelope onto AMQP message properties. AMQP timestamps
// have second resolution, so the millisecond capture time also travels in
// the timestamp header.
func ToPublishing(envelope *contracts.Envelope) amqp.Publishing {
	headers := make(amqp.Table, len(envelope.Headers))
	for k, v := range envelope.Headers {
		headers[k] = v
	}

	return amqp.Publishing{
		ContentType:   "text/plain",
		DeliveryMode:  amqp.Persistent,
		MessageId:     envelope.CorrelationID,
		CorrelationId: envelope.CorrelationID,
		Timestamp:     envelope.Time(),
		Headers:       headers,
		Body:          envelope.Payload,
	}
}
