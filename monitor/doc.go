// Package monitor exports publish metrics to Prometheus.
//
// PublishMetrics observes every publish attempt made by a
// messaging.MessagePublisher and serves the collected series on /metrics.
package monitor
