package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/glimte/streamgen/messaging"
)

// ConnectionStatus reports whether the broker connection is open.
// *rabbitmq.ConnectionManager satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// PoolStats exposes channel pool occupancy. *rabbitmq.ChannelPool satisfies it.
type PoolStats interface {
	Size() int
	MaxSize() int
}

// BrokerChecker checks the broker connection
type BrokerChecker struct {
	conn ConnectionStatus
}

// NewBrokerChecker creates a new broker connection checker
func NewBrokerChecker(conn ConnectionStatus) *BrokerChecker {
	return &BrokerChecker{conn: conn}
}

func (c *BrokerChecker) Name() string {
	return "rabbitmq"
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.Name(), Timestamp: start}

	if c.conn.IsConnected() {
		result.Status = StatusHealthy
		result.Message = "Connection is healthy"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "Connection is closed"
	}

	result.Duration = time.Since(start)
	return result
}

// PoolChecker reports how many pooled channels are open
type PoolChecker struct {
	pool PoolStats
}

// NewPoolChecker creates a new channel pool checker
func NewPoolChecker(pool PoolStats) *PoolChecker {
	return &PoolChecker{pool: pool}
}

func (c *PoolChecker) Name() string {
	return "channel_pool"
}

func (c *PoolChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	open, capacity := c.pool.Size(), c.pool.MaxSize()

	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Status:    StatusHealthy,
		Message:   "Channel pool is healthy",
		Details: map[string]interface{}{
			"open_channels": open,
			"max_channels":  capacity,
		},
	}

	if capacity < 1 {
		result.Status = StatusUnhealthy
		result.Message = "Channel pool has no capacity"
	}

	result.Duration = time.Since(start)
	return result
}

// StreamChecker checks that a provisioned stream still exists
type StreamChecker struct {
	stream   string
	topology messaging.StreamTopology
}

// NewStreamChecker creates a checker for one stream
func NewStreamChecker(stream string, topology messaging.StreamTopology) *StreamChecker {
	return &StreamChecker{stream: stream, topology: topology}
}

func (c *StreamChecker) Name() string {
	return fmt.Sprintf("stream_%s", c.stream)
}

func (c *StreamChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.Name(), Timestamp: start}

	info, err := c.topology.InspectStream(ctx, c.stream)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Stream %s not accessible", c.stream)
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("Stream %s is accessible", c.stream)
	result.Duration = time.Since(start)
	result.Details = map[string]interface{}{
		"stream":           info.Name,
		"message_count":    info.Messages,
		"consumer_count":   info.Consumers,
		"response_time_ms": result.Duration.Milliseconds(),
	}
	return result
}

// RuntimeChecker flags goroutine leaks
type RuntimeChecker struct {
	warnGoroutines     int
	criticalGoroutines int
}

// NewRuntimeChecker creates a checker with goroutine thresholds
func NewRuntimeChecker(warnGoroutines, criticalGoroutines int) *RuntimeChecker {
	return &RuntimeChecker{
		warnGoroutines:     warnGoroutines,
		criticalGoroutines: criticalGoroutines,
	}
}

func (c *RuntimeChecker) Name() string {
	return "runtime"
}

func (c *RuntimeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goroutines := runtime.NumGoroutine()

	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details: map[string]interface{}{
			"memory_used_mb": float64(m.Sys) / 1024 / 1024,
			"gc_runs":        m.NumGC,
			"goroutines":     goroutines,
		},
	}

	switch {
	case goroutines > c.criticalGoroutines:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Too many goroutines: %d", goroutines)
	case goroutines > c.warnGoroutines:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("High goroutine count: %d", goroutines)
	default:
		result.Status = StatusHealthy
		result.Message = "Runtime is normal"
	}

	result.Duration = time.Since(start)
	return result
}

// ComponentChecker allows checking custom components
type ComponentChecker struct {
	name    string
	checker func(ctx context.Context) (Status, string, map[string]interface{}, error)
}

// NewComponentChecker creates a checker for custom components
func NewComponentChecker(name string, checker func(ctx context.Context) (Status, string, map[string]interface{}, error)) *ComponentChecker {
	return &ComponentChecker{
		name:    name,
		checker: checker,
	}
}

func (c *ComponentChecker) Name() string {
	return c.name
}

func (c *ComponentChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status, message, details, err := c.checker(ctx)

	result := CheckResult{
		Name:      c.Name(),
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: start,
	}
	if err != nil {
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}
