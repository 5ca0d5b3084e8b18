package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// QueueTypeArgument is the declare argument selecting the queue implementation
	QueueTypeArgument = "x-queue-type"
	// QueueTypeStream marks a queue as a stream
	QueueTypeStream = "stream"
)

// StreamDeclaration defines a stream to be declared. Streams are always
// durable and never auto-deleted; Arguments are merged over the stream type marker.
type StreamDeclaration struct {
	Name      string
	Arguments amqp.Table
}

// Table returns the full declare arguments for the stream
func (d StreamDeclaration) Table() amqp.Table {
	args := amqp.Table{}
	for k, v := range d.Arguments {
		args[k] = v
	}
	args[QueueTypeArgument] = QueueTypeStream
	return args
}

// TopologyManager deletes, declares and inspects streams. Each operation runs
// on its own pooled channel because a broker-side failure closes the channel.
type TopologyManager struct {
	pool *ChannelPool
}

// NewTopologyManager creates a new topology manager
func NewTopologyManager(pool *ChannelPool) *TopologyManager {
	return &TopologyManager{
		pool: pool,
	}
}

// DeleteStream deletes a stream regardless of its consumers or contents
func (tm *TopologyManager) DeleteStream(ctx context.Context, name string) error {
	return tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		if _, err := ch.QueueDelete(name, false, false, false); err != nil {
			return &TopologyError{Name: name, Op: "delete", Err: err, Timestamp: time.Now()}
		}
		return nil
	})
}

// DeclareStream declares a durable, non-auto-delete stream
func (tm *TopologyManager) DeclareStream(ctx context.Context, decl StreamDeclaration) (amqp.Queue, error) {
	var q amqp.Queue
	err := tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		var err error
		q, err = ch.QueueDeclare(
			decl.Name,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			decl.Table(),
		)
		if err != nil {
			return &TopologyError{Name: decl.Name, Op: "declare", Err: err, Timestamp: time.Now()}
		}
		return nil
	})
	return q, err
}

// InspectStream passively declares the stream, failing if it does not exist
func (tm *TopologyManager) InspectStream(ctx context.Context, decl StreamDeclaration) (amqp.Queue, error) {
	var q amqp.Queue
	err := tm.pool.Execute(ctx, func(ch *PooledChannel) error {
		var err error
		q, err = ch.QueueDeclarePassive(
			decl.Name,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			decl.Table(),
		)
		if err != nil {
			return &TopologyError{Name: decl.Name, Op: "inspect", Err: err, Timestamp: time.Now()}
		}
		return nil
	})
	return q, err
}
