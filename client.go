// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streamgen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glimte/streamgen/health"
	"github.com/glimte/streamgen/internal/config"
	"github.com/glimte/streamgen/internal/rabbitmq"
	"github.com/glimte/streamgen/loadgen"
	"github.com/glimte/streamgen/messaging"
	"github.com/glimte/streamgen/monitor"
	"github.com/glimte/streamgen/trigger"
	rabbitmqTransport "github.com/glimte/streamgen/transports/rabbitmq"
	"golang.org/x/sync/errgroup"
)

// Client wires provisioning, the publish loop and the trigger server over
// one transport
type Client struct {
	cfg         config.Config
	transport   messaging.Transport
	provisioner *messaging.Provisioner
	publisher   *messaging.MessagePublisher
	loop        *loadgen.Loop
	metrics     *monitor.PublishMetrics
	registry    *health.Registry
	server      *trigger.Server
	logger      *slog.Logger

	mu        sync.RWMutex
	running   bool
	lastStats loadgen.Stats
	lastErr   error
}

// lossNotifier is implemented by transports that report a dropped connection
type lossNotifier interface {
	Lost() <-chan error
}

// poolProvider is implemented by transports backed by a channel pool
type poolProvider interface {
	Pool() *rabbitmq.ChannelPool
}

// Dial connects to the broker described by cfg and creates a client
func Dial(ctx context.Context, cfg config.Config, options ...ClientOption) (*Client, error) {
	opts := newClientConfig(options)

	transport, err := rabbitmqTransport.NewTransport(ctx, cfg.URL(),
		rabbitmqTransport.WithConnectionOptions(rabbitmq.WithLogger(opts.logger)),
		rabbitmqTransport.WithPoolOptions(
			rabbitmq.WithMaxSize(cfg.Broker.PoolSize),
			rabbitmq.WithConfirms(cfg.Broker.Confirms),
			rabbitmq.WithChannelLogger(opts.logger),
		),
		rabbitmqTransport.WithPublisherOptions(rabbitmq.WithPublisherLogger(opts.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	c, err := New(cfg, transport, options...)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return c, nil
}

// New creates a client over an existing transport. cfg must be valid.
func New(cfg config.Config, transport messaging.Transport, options ...ClientOption) (*Client, error) {
	opts := newClientConfig(options)

	policy := opts.policy
	if policy == nil {
		var selectionOpts []messaging.SelectionOption
		if opts.random != nil {
			selectionOpts = append(selectionOpts, messaging.WithRandomSource(opts.random))
		}
		p, err := messaging.NewSelectionPolicy(cfg.Selection, cfg.Streams, selectionOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build selection policy: %w", err)
		}
		policy = p
	}

	factory := opts.factory
	if factory == nil {
		factory = messaging.NewEnvelopeFactory(
			messaging.WithPayloadProducer(messaging.NewLoremProducer(cfg.Publish.PayloadWords, 0)),
		)
	}

	metrics := monitor.NewPublishMetrics()
	publisher := messaging.NewMessagePublisher(transport, factory,
		messaging.WithPublisherLogger(opts.logger),
		messaging.WithPublishObserver(metrics),
	)

	pacer := opts.pacer
	if pacer == nil {
		pacer = loadgen.NewIntervalPacer(cfg.Publish.Interval, cfg.Publish.Every)
	}
	loop := loadgen.NewLoop(publisher, policy,
		loadgen.WithPacer(pacer),
		loadgen.WithBurstSize(cfg.Publish.BurstSize),
		loadgen.WithLogger(opts.logger),
	)

	c := &Client{
		cfg:         cfg,
		transport:   transport,
		provisioner: messaging.NewProvisioner(transport, messaging.WithProvisionerLogger(opts.logger)),
		publisher:   publisher,
		loop:        loop,
		metrics:     metrics,
		registry:    health.NewRegistry(),
		logger:      opts.logger,
	}
	c.registerCheckers()

	c.server = trigger.NewServer(loop,
		trigger.WithHealth(c.registry),
		trigger.WithMetrics(metrics.Handler()),
		trigger.WithLogger(opts.logger),
	)

	return c, nil
}

func (c *Client) registerCheckers() {
	c.registry.Register(health.NewBrokerChecker(c.transport))
	if p, ok := c.transport.(poolProvider); ok {
		c.registry.Register(health.NewPoolChecker(p.Pool()))
	}
	for _, name := range c.cfg.StreamNames() {
		c.registry.Register(health.NewStreamChecker(name, c.transport))
	}
	c.registry.Register(health.NewRuntimeChecker(500, 1000))
	c.registry.Register(health.NewComponentChecker("publish_loop", c.checkLoop))
	c.registry.SetMetadata("streams", c.cfg.StreamNames())
	c.registry.SetMetadata("selection", c.cfg.Selection)
}

func (c *Client) checkLoop(ctx context.Context) (health.Status, string, map[string]interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	details := map[string]interface{}{
		"attempts":  c.lastStats.Attempts,
		"published": c.lastStats.Published,
		"failed":    c.lastStats.Failed,
	}
	switch {
	case c.lastErr != nil:
		return health.StatusUnhealthy, "Publish loop stopped", details, c.lastErr
	case c.running:
		return health.StatusHealthy, "Publish loop running", details, nil
	default:
		return health.StatusHealthy, "Publish loop idle", details, nil
	}
}

// Provision resets and declares every configured stream, then verifies them
func (c *Client) Provision(ctx context.Context) error {
	if err := c.provisioner.Run(ctx, c.cfg.Streams); err != nil {
		return err
	}
	return c.provisioner.Verify(ctx, c.cfg.Streams)
}

// Run drives the publish loop for maxAttempts attempts, or until ctx is
// cancelled when maxAttempts is zero. A dropped broker connection ends the
// run with an error.
func (c *Client) Run(ctx context.Context, maxAttempts int) (loadgen.Stats, error) {
	c.mu.Lock()
	c.running = true
	c.lastErr = nil
	c.mu.Unlock()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if n, ok := c.transport.(lossNotifier); ok {
		go func() {
			select {
			case err := <-n.Lost():
				cancel(fmt.Errorf("broker connection lost: %w", err))
			case <-ctx.Done():
			}
		}()
	}

	stats, err := c.loop.Run(ctx, maxAttempts)
	if err == nil {
		if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
			err = cause
		}
	}

	c.mu.Lock()
	c.running = false
	c.lastStats = stats
	c.lastErr = err
	c.mu.Unlock()

	return stats, err
}

// Burst publishes count messages to stream, capped at the configured burst size
func (c *Client) Burst(ctx context.Context, stream string, count int) (int, error) {
	if count < 1 || count > c.loop.BurstSize() {
		count = c.loop.BurstSize()
	}
	return c.loop.Burst(ctx, stream, count)
}

// Serve runs the publish loop and the trigger server until ctx is cancelled
// or either of them fails
func (c *Client) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := c.Run(gctx, 0)
		return err
	})
	g.Go(func() error {
		return c.server.ListenAndServe(gctx, c.cfg.HTTPAddr)
	})

	return g.Wait()
}

// Server returns the trigger server
func (c *Client) Server() *trigger.Server {
	return c.server
}

// Health returns the health check registry
func (c *Client) Health() *health.Registry {
	return c.registry
}

// Metrics returns the publish metrics
func (c *Client) Metrics() *monitor.PublishMetrics {
	return c.metrics
}

// Transport returns the underlying transport
func (c *Client) Transport() messaging.Transport {
	return c.transport
}

// Close closes all resources
func (c *Client) Close() error {
	c.server.Close()
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

// clientConfig holds client configuration
type clientConfig struct {
	logger  *slog.Logger
	policy  messaging.SelectionPolicy
	random  messaging.RandomSource
	factory *messaging.EnvelopeFactory
	pacer   loadgen.Pacer
}

func newClientConfig(options []ClientOption) *clientConfig {
	cfg := &clientConfig{logger: slog.Default()}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithSelectionPolicy replaces the policy built from the configuration
func WithSelectionPolicy(policy messaging.SelectionPolicy) ClientOption {
	return func(cfg *clientConfig) {
		cfg.policy = policy
	}
}

// WithRandomSource seeds the selection policy built from the configuration
func WithRandomSource(src messaging.RandomSource) ClientOption {
	return func(cfg *clientConfig) {
		cfg.random = src
	}
}

// WithEnvelopeFactory replaces the default envelope factory
func WithEnvelopeFactory(factory *messaging.EnvelopeFactory) ClientOption {
	return func(cfg *clientConfig) {
		cfg.factory = factory
	}
}

// WithPacer replaces the pacer built from the configuration
func WithPacer(pacer loadgen.Pacer) ClientOption {
	return func(cfg *clientConfig) {
		cfg.pacer = pacer
	}
}
