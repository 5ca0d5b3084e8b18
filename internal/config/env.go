package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays AMQP_* and publish environment variables onto cfg.
// Unparseable numbers and durations are ignored; a malformed stream list is
// returned as an error because it would silently change the load target.
func FromEnv(cfg *Config) error {
	if v := os.Getenv("AMQP_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("AMQP_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv("AMQP_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("AMQP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = n
		}
	}
	if v := os.Getenv("AMQP_VHOST"); v != "" {
		cfg.Broker.VHost = v
	}
	if v := os.Getenv("AMQP_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Broker.PoolSize = n
		}
	}
	if v := os.Getenv("AMQP_CONFIRMS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Broker.Confirms = b
		}
	}
	if v := os.Getenv("AMQP_QUEUE_NAMES"); v != "" {
		if err := cfg.SetStreams(v); err != nil {
			return err
		}
	}
	if v := os.Getenv("AMQP_SELECTION"); v != "" {
		cfg.Selection = v
	}
	if v := os.Getenv("PUBLISH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Publish.Interval = d
		}
	}
	if v := os.Getenv("PUBLISH_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Publish.Every = n
		}
	}
	if v := os.Getenv("PAYLOAD_WORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Publish.PayloadWords = n
		}
	}
	if v := os.Getenv("BURST_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Publish.BurstSize = n
		}
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	return nil
}
