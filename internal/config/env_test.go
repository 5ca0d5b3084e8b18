package config

import (
	"testing"
	"time"

	"github.com/glimte/streamgen/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("AMQP_USERNAME", "load")
	t.Setenv("AMQP_PASSWORD", "secret")
	t.Setenv("AMQP_HOST", "rabbit")
	t.Setenv("AMQP_PORT", "5673")
	t.Setenv("AMQP_VHOST", "perf")
	t.Setenv("AMQP_POOL_SIZE", "4")
	t.Setenv("AMQP_CONFIRMS", "false")
	t.Setenv("AMQP_QUEUE_NAMES", "orders:5,payments")
	t.Setenv("AMQP_SELECTION", "weighted")
	t.Setenv("PUBLISH_INTERVAL", "250ms")
	t.Setenv("PUBLISH_EVERY", "3")
	t.Setenv("PAYLOAD_WORDS", "8")
	t.Setenv("BURST_SIZE", "25")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg := Default()
	require.NoError(t, FromEnv(&cfg))

	assert.Equal(t, BrokerConfig{
		Username: "load", Password: "secret", Host: "rabbit", Port: 5673,
		VHost: "perf", PoolSize: 4, Confirms: false,
	}, cfg.Broker)
	assert.Equal(t, []contracts.StreamSpec{{Name: "orders", Weight: 5}, {Name: "payments"}}, cfg.Streams)
	assert.Equal(t, "weighted", cfg.Selection)
	assert.Equal(t, PublishConfig{Interval: 250 * time.Millisecond, Every: 3, PayloadWords: 8, BurstSize: 25}, cfg.Publish)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvIgnoresUnparseableNumbers(t *testing.T) {
	t.Setenv("AMQP_PORT", "not-a-port")
	t.Setenv("PUBLISH_INTERVAL", "soon")
	t.Setenv("AMQP_CONFIRMS", "maybe")

	cfg := Default()
	require.NoError(t, FromEnv(&cfg))

	assert.Equal(t, 5672, cfg.Broker.Port)
	assert.Equal(t, time.Second, cfg.Publish.Interval)
	assert.True(t, cfg.Broker.Confirms)
}

func TestFromEnvRejectsBadStreamList(t *testing.T) {
	t.Setenv("AMQP_QUEUE_NAMES", "orders:-1")

	cfg := Default()
	assert.ErrorIs(t, FromEnv(&cfg), contracts.ErrInvalidWeight)

	t.Setenv("AMQP_QUEUE_NAMES", "a:9223372036854775807,b:1")
	assert.ErrorIs(t, FromEnv(&cfg), contracts.ErrInvalidWeight)
}
