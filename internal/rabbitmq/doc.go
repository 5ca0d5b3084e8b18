// Package rabbitmq provides the RabbitMQ plumbing for the stream load generator.
//
// This package includes:
//   - ConnectionManager: Owns the single broker connection and reports its loss
//   - ChannelPool: Hands out channels from that connection, one owner at a time
//   - Publisher: Publishes to streams through the default exchange, with confirms
//   - TopologyManager: Deletes, declares and inspects streams
//
// Nothing in this package retries. Every failure is returned to the caller,
// which decides whether it is fatal.
package rabbitmq
