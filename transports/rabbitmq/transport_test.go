package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/glimte/streamgen/contracts"
	"github.com/glimte/streamgen/internal/rabbitmq"
	"github.com/glimte/streamgen/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ messaging.Transport = (*Transport)(nil)

func TestToPublishing(t *testing.T) {
	env := &contracts.Envelope{
		CorrelationID: "transaction_0b9c2d0e-6f1a-4c53-9d5e-3b1f2a4c5d6e",
		CapturedAt:    1714564800123,
		Headers: map[string]interface{}{
			contracts.TransactionIDHeader: "transaction_0b9c2d0e-6f1a-4c53-9d5e-3b1f2a4c5d6e",
			contracts.TimestampHeader:     int64(1714564800123),
		},
		Payload: []byte("Lorem ipsum dolor sit amet."),
	}

	msg := ToPublishing(env)

	assert.Equal(t, env.Payload, msg.Body)
	assert.Equal(t, "text/plain", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, env.CorrelationID, msg.MessageId)
	assert.Equal(t, env.CorrelationID, msg.CorrelationId)
	assert.Equal(t, env.CorrelationID, msg.Headers[contracts.TransactionIDHeader])
	assert.Equal(t, int64(1714564800123), msg.Headers[contracts.TimestampHeader])
	assert.Equal(t, time.UnixMilli(1714564800123), msg.Timestamp)
	assert.NoError(t, msg.Headers.Validate())

	msg.Headers["extra"] = "x"
	_, leaked := env.Headers["extra"]
	assert.False(t, leaked)
}

func TestTransportOptions(t *testing.T) {
	cfg := &TransportConfig{}
	WithStreamArguments(amqp.Table{"x-max-age": "7D"})(cfg)
	WithStreamArguments(amqp.Table{"x-max-length-bytes": int64(1 << 30)})(cfg)
	WithPoolOptions(rabbitmq.WithMaxSize(3))(cfg)
	WithConnectionOptions(rabbitmq.WithDialTimeout(time.Second))(cfg)
	WithPublisherOptions(rabbitmq.WithPublishTimeout(time.Second))(cfg)

	assert.Equal(t, amqp.Table{"x-max-age": "7D", "x-max-length-bytes": int64(1 << 30)}, cfg.StreamArguments)
	assert.Len(t, cfg.PoolOptions, 1)
	assert.Len(t, cfg.ConnectionOptions, 1)
	assert.Len(t, cfg.PublisherOptions, 1)
}

func TestNewTransportFailsWithoutBroker(t *testing.T) {
	_, err := NewTransport(context.Background(), "invalid://url")
	require.Error(t, err)

	var connErr *rabbitmq.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}
