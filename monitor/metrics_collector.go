package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/glimte/streamgen/internal/rabbitmq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamgen"

// Failure reasons used as the reason label
const (
	ReasonReturned     = "returned"
	ReasonNotConfirmed = "not_confirmed"
	ReasonTimeout      = "timeout"
	ReasonConnectivity = "connectivity"
	ReasonCancelled    = "cancelled"
	ReasonOther        = "other"
)

// PublishMetrics implements messaging.PublishObserver on top of Prometheus
type PublishMetrics struct {
	registry  *prometheus.Registry
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewPublishMetrics creates the publish collectors on a private registry
// together with the Go runtime and process collectors
func NewPublishMetrics() *PublishMetrics {
	m := &PublishMetrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages accepted by the broker",
		}, []string{"stream"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Publish attempts that failed",
		}, []string{"stream", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time from publish to broker confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stream"}),
	}

	m.registry.MustRegister(
		m.published,
		m.failed,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObservePublish records one attempt
func (m *PublishMetrics) ObservePublish(stream string, duration time.Duration, err error) {
	m.latency.WithLabelValues(stream).Observe(duration.Seconds())
	if err != nil {
		m.failed.WithLabelValues(stream, Reason(err)).Inc()
		return
	}
	m.published.WithLabelValues(stream).Inc()
}

// Registry returns the registry the collectors live on
func (m *PublishMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *PublishMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Reason classifies a publish error for the reason label
func Reason(err error) string {
	switch {
	case errors.Is(err, rabbitmq.ErrMessageReturned):
		return ReasonReturned
	case errors.Is(err, rabbitmq.ErrPublishNotConfirmed):
		return ReasonNotConfirmed
	case errors.Is(err, rabbitmq.ErrPublishTimeout):
		return ReasonTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case rabbitmq.IsConnectivity(err):
		return ReasonConnectivity
	default:
		return ReasonOther
	}
}
