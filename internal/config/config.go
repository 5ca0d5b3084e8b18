package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glimte/streamgen/contracts"
)

var (
	// ErrInvalidConfig is wrapped by every Validate failure
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// selectionModes mirrors the messaging selection constants
var selectionModes = map[string]bool{"auto": true, "fixed": true, "uniform": true, "weighted": true}

// Config is the top-level configuration loaded from env and flags.
type Config struct {
	Broker  BrokerConfig
	Streams []contracts.StreamSpec
	// Selection is one of auto, fixed, uniform or weighted.
	Selection string
	Publish   PublishConfig
	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

// BrokerConfig holds the AMQP connection settings.
type BrokerConfig struct {
	Username string
	Password string
	Host     string
	Port     int
	VHost    string
	PoolSize int
	Confirms bool
}

// PublishConfig shapes the load.
type PublishConfig struct {
	// Interval is the pause after every Every attempts. Zero disables pacing.
	Interval     time.Duration
	Every        int
	PayloadWords int
	BurstSize    int
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Broker: BrokerConfig{
			Username: "guest",
			Password: "guest",
			Host:     "localhost",
			Port:     5672,
			VHost:    "/",
			PoolSize: 10,
			Confirms: true,
		},
		Streams:   []contracts.StreamSpec{{Name: "demo"}},
		Selection: "auto",
		Publish: PublishConfig{
			Interval:     time.Second,
			Every:        1,
			PayloadWords: 20,
			BurstSize:    10,
		},
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// URL renders the AMQP connection url
func (c Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Broker.Username, c.Broker.Password),
		Host:   net.JoinHostPort(c.Broker.Host, strconv.Itoa(c.Broker.Port)),
	}
	// The default vhost "/" must travel escaped as %2F.
	vhost := c.Broker.VHost
	if vhost == "" {
		vhost = "/"
	}
	u.RawPath = "/" + url.PathEscape(vhost)
	u.Path = "/" + vhost
	return u.String()
}

// StreamNames returns the configured stream names in order
func (c Config) StreamNames() []string {
	return contracts.StreamNames(c.Streams)
}

// SetStreams replaces the stream list from a comma-separated name[:weight] list
func (c *Config) SetStreams(raw string) error {
	specs, err := contracts.ParseStreamSpecs(raw)
	if err != nil {
		return err
	}
	c.Streams = specs
	return nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	var errs []error

	if c.Broker.Host == "" {
		errs = append(errs, errors.New("broker host is required"))
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker port %d out of range", c.Broker.Port))
	}
	if c.Broker.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool size must be at least 1, got %d", c.Broker.PoolSize))
	}
	if len(c.Streams) == 0 {
		errs = append(errs, errors.New("at least one stream is required"))
	} else if err := contracts.ValidateStreamSpecs(c.Streams); err != nil {
		errs = append(errs, err)
	}
	if !selectionModes[c.Selection] {
		errs = append(errs, fmt.Errorf("unknown selection %q", c.Selection))
	}
	if c.Selection == "fixed" && len(c.Streams) != 1 {
		errs = append(errs, fmt.Errorf("fixed selection needs exactly one stream, got %d", len(c.Streams)))
	}
	if c.Publish.Interval < 0 {
		errs = append(errs, fmt.Errorf("publish interval must not be negative, got %s", c.Publish.Interval))
	}
	if c.Publish.Every < 1 {
		errs = append(errs, fmt.Errorf("publish every must be at least 1, got %d", c.Publish.Every))
	}
	if c.Publish.BurstSize < 1 {
		errs = append(errs, fmt.Errorf("burst size must be at least 1, got %d", c.Publish.BurstSize))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name onto slog
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
