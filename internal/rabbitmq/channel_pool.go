package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelPool hands out AMQP channels from one shared connection. A channel
// is owned by exactly one caller between Get and Put.
type ChannelPool struct {
	manager        *ConnectionManager
	channels       chan *PooledChannel
	maxSize        int
	acquireTimeout time.Duration
	confirms       bool
	logger         *slog.Logger

	mu          sync.Mutex
	closed      bool
	activeCount int
}

// PooledChannel wraps an AMQP channel with pool metadata
type PooledChannel struct {
	*amqp.Channel
	returns  chan amqp.Return
	confirms bool
	lastUsed time.Time
	id       string
}

// ID returns the pool-local identifier of the channel
func (pc *PooledChannel) ID() string {
	return pc.id
}

// ChannelPoolOption configures the channel pool
type ChannelPoolOption func(*ChannelPool)

// WithMaxSize sets the maximum number of open channels
func WithMaxSize(size int) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.maxSize = size
	}
}

// WithAcquireTimeout sets how long Get waits for a free channel once the pool is at capacity
func WithAcquireTimeout(timeout time.Duration) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.acquireTimeout = timeout
	}
}

// WithConfirms puts every new channel into publisher confirm mode
func WithConfirms(enabled bool) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.confirms = enabled
	}
}

// WithChannelLogger sets the pool logger
func WithChannelLogger(logger *slog.Logger) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.logger = logger
	}
}

// NewChannelPool creates a new channel pool
func NewChannelPool(manager *ConnectionManager, options ...ChannelPoolOption) (*ChannelPool, error) {
	if manager == nil {
		return nil, ErrInvalidConfiguration
	}

	pool := &ChannelPool{
		manager:        manager,
		maxSize:        10,
		acquireTimeout: 5 * time.Second,
		confirms:       true,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(pool)
	}

	if pool.maxSize < 1 {
		return nil, fmt.Errorf("%w: max size must be at least 1", ErrInvalidConfiguration)
	}

	pool.channels = make(chan *PooledChannel, pool.maxSize)

	return pool, nil
}

// Get retrieves a channel from the pool, opening a new one while under capacity.
// The acquire timeout covers the whole call, however many stale channels are skipped.
func (cp *ChannelPool) Get(ctx context.Context) (*PooledChannel, error) {
	timer := time.NewTimer(cp.acquireTimeout)
	defer timer.Stop()

	for {
		cp.mu.Lock()
		if cp.closed {
			cp.mu.Unlock()
			return nil, ErrChannelPoolClosed
		}
		cp.mu.Unlock()

		select {
		case ch, ok := <-cp.channels:
			if !ok {
				return nil, ErrChannelPoolClosed
			}
			if stale(ch) {
				cp.release()
				continue
			}
			ch.lastUsed = time.Now()
			return ch, nil
		default:
		}

		if cp.reserve() {
			return cp.createAndGet(ctx)
		}

		select {
		case ch, ok := <-cp.channels:
			if !ok {
				return nil, ErrChannelPoolClosed
			}
			if stale(ch) {
				cp.release()
				continue
			}
			ch.lastUsed = time.Now()
			return ch, nil

		case <-ctx.Done():
			return nil, &ChannelError{
				Op:        "get channel",
				ChannelID: "pool",
				Err:       ctx.Err(),
				Timestamp: time.Now(),
			}

		case <-timer.C:
			return nil, &ChannelError{
				Op:        "get channel",
				ChannelID: "pool",
				Err:       ErrChannelPoolExhausted,
				Timestamp: time.Now(),
			}
		}
	}
}

// Put returns a channel to the pool. Channels closed by the broker are dropped.
func (cp *ChannelPool) Put(ch *PooledChannel) {
	if ch == nil {
		return
	}

	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		cp.discard(ch)
		return
	}

	if stale(ch) {
		cp.activeCount--
		cp.mu.Unlock()
		cp.logger.Debug("dropping closed channel", "channel", ch.id)
		return
	}

	ch.lastUsed = time.Now()

	select {
	case cp.channels <- ch:
		cp.mu.Unlock()
	default:
		cp.activeCount--
		cp.mu.Unlock()
		cp.discard(ch)
	}
}

// Close closes all idle channels. Channels still checked out are closed on Put.
func (cp *ChannelPool) Close() error {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return nil
	}
	cp.closed = true
	close(cp.channels)
	cp.mu.Unlock()

	for ch := range cp.channels {
		cp.discard(ch)
	}

	return nil
}

// Size returns the number of open channels, idle or checked out
func (cp *ChannelPool) Size() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.activeCount
}

// MaxSize returns the pool capacity
func (cp *ChannelPool) MaxSize() int {
	return cp.maxSize
}

// Execute runs fn with a channel from the pool and returns the channel on every exit path
func (cp *ChannelPool) Execute(ctx context.Context, fn func(*PooledChannel) error) (err error) {
	ch, err := cp.Get(ctx)
	if err != nil {
		return err
	}
	defer cp.Put(ch)

	defer func() {
		if r := recover(); r != nil {
			// The channel may be mid-frame; never hand it out again.
			_ = ch.Channel.Close()
			err = fmt.Errorf("panic in channel execution: %v", r)
		}
	}()

	return fn(ch)
}

func (cp *ChannelPool) reserve() bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.activeCount >= cp.maxSize {
		return false
	}
	cp.activeCount++
	return true
}

func (cp *ChannelPool) release() {
	cp.mu.Lock()
	cp.activeCount--
	cp.mu.Unlock()
}

func (cp *ChannelPool) discard(ch *PooledChannel) {
	if ch != nil && !stale(ch) {
		_ = ch.Channel.Close()
	}
}

// createAndGet opens a channel for a slot already reserved by the caller
func (cp *ChannelPool) createAndGet(ctx context.Context) (*PooledChannel, error) {
	select {
	case <-ctx.Done():
		cp.release()
		return nil, &ChannelError{
			Op:        "create channel",
			ChannelID: "new",
			Err:       ctx.Err(),
			Timestamp: time.Now(),
		}
	default:
	}

	ch, err := cp.createChannel()
	if err != nil {
		cp.release()
		return nil, err
	}
	return ch, nil
}

func (cp *ChannelPool) createChannel() (*PooledChannel, error) {
	conn, err := cp.manager.GetConnection()
	if err != nil {
		return nil, &ChannelError{
			Op:        "create channel",
			ChannelID: "new",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &ChannelError{
			Op:        "create channel",
			ChannelID: "new",
			Err:       fmt.Errorf("%w: %v", ErrChannelCreationFailed, err),
			Timestamp: time.Now(),
		}
	}

	pooled := &PooledChannel{
		Channel:  ch,
		lastUsed: time.Now(),
		id:       uuid.New().String(),
	}

	if cp.confirms {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, &ChannelError{
				Op:        "enable confirms",
				ChannelID: pooled.id,
				Err:       err,
				Timestamp: time.Now(),
			}
		}
		pooled.confirms = true
		// Registered once per channel; one message is in flight at a time.
		pooled.returns = ch.NotifyReturn(make(chan amqp.Return, 4))
	}

	cp.logger.Debug("opened channel", "channel", pooled.id, "confirms", pooled.confirms)
	return pooled, nil
}

// stale reports whether ch can no longer carry frames
func stale(ch *PooledChannel) bool {
	return ch.Channel == nil || ch.Channel.IsClosed()
}
