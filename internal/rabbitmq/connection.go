package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectionManager owns the single AMQP connection shared by the channel pool.
// A lost connection is reported, not re-established: the caller decides
// whether the process can continue.
type ConnectionManager struct {
	url            string
	connectionName string
	dialTimeout    time.Duration
	heartbeat      time.Duration
	logger         *slog.Logger

	mu          sync.RWMutex
	conn        *amqp.Connection
	isConnected bool
	notifyClose chan *amqp.Error
	closed      chan struct{}
	lost        chan error
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithDialTimeout bounds how long Connect waits for the broker handshake
func WithDialTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.dialTimeout = timeout
	}
}

// WithHeartbeat sets the AMQP heartbeat interval
func WithHeartbeat(interval time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.heartbeat = interval
	}
}

// WithConnectionName sets the client-provided connection name shown in the management UI
func WithConnectionName(name string) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.connectionName = name
	}
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		connectionName: "streamgen",
		dialTimeout:    30 * time.Second,
		heartbeat:      10 * time.Second,
		logger:         slog.Default(),
		closed:         make(chan struct{}),
		lost:           make(chan error, 1),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Connect establishes the connection
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isConnected {
		return nil
	}

	connCtx, cancel := context.WithTimeout(ctx, cm.dialTimeout)
	defer cancel()

	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)

	go func() {
		props := amqp.NewConnectionProperties()
		props.SetClientConnectionName(cm.connectionName)
		conn, err := amqp.DialConfig(cm.url, amqp.Config{
			Heartbeat:  cm.heartbeat,
			Locale:     "en_US",
			Properties: props,
		})
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		cm.conn = conn
		cm.isConnected = true
		cm.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))

		cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))

		go cm.watch(cm.notifyClose)
		return nil

	case err := <-errChan:
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}

	case <-connCtx.Done():
		// Close a connection that completes after we gave up on it.
		go func() {
			if conn := <-connChan; conn != nil {
				_ = conn.Close()
			}
		}()
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       ErrConnectionTimeout,
			Timestamp: time.Now(),
		}
	}
}

// GetConnection returns the current connection
func (cm *ConnectionManager) GetConnection() (*amqp.Connection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.isConnected || cm.conn == nil {
		return nil, ErrConnectionNotReady
	}

	if cm.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}

	return cm.conn, nil
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isConnected
}

// Lost delivers the broker error when the connection drops unexpectedly.
// It never fires after Close.
func (cm *ConnectionManager) Lost() <-chan error {
	return cm.lost
}

// Close closes the connection
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.isConnected {
		return nil
	}

	close(cm.closed)
	cm.isConnected = false

	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}

	return nil
}

func (cm *ConnectionManager) watch(notify chan *amqp.Error) {
	select {
	case amqpErr, ok := <-notify:
		select {
		case <-cm.closed:
			return
		default:
		}

		cm.mu.Lock()
		cm.isConnected = false
		cm.conn = nil
		cm.mu.Unlock()

		var err error = ErrConnectionClosed
		if ok && amqpErr != nil {
			err = &ConnectionError{
				Op:        "connection",
				URL:       SanitizeURL(cm.url),
				Err:       amqpErr,
				Timestamp: time.Now(),
			}
		}
		cm.logger.Error("connection lost", "error", err)

		select {
		case cm.lost <- err:
		default:
		}

	case <-cm.closed:
	}
}
