package messaging

import (
	"context"

	"github.com/glimte/streamgen/contracts"
)

// StreamPublisher publishes one envelope to a named stream
type StreamPublisher interface {
	Publish(ctx context.Context, stream string, envelope *contracts.Envelope) error
}

// StreamTopology manages stream lifecycle on the broker
type StreamTopology interface {
	// DeleteStream removes a stream; a missing stream may or may not be an error
	DeleteStream(ctx context.Context, name string) error

	// DeclareStream creates a durable, non-auto-delete stream
	DeclareStream(ctx context.Context, name string) error

	// InspectStream fails if the stream does not exist
	InspectStream(ctx context.Context, name string) (StreamInfo, error)
}

// StreamInfo describes a declared stream
type StreamInfo struct {
	Name      string
	Messages  int
	Consumers int
}

// Transport provides both publishing and stream management
type Transport interface {
	StreamPublisher
	StreamTopology

	// IsConnected returns connection status
	IsConnected() bool

	// Close closes all resources
	Close() error
}
