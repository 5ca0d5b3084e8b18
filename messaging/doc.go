// Package messaging holds the broker-independent core of the load generator.
//
// This package implements:
//   - Provisioner: delete-then-declare of the configured streams
//   - SelectionPolicy: Fixed, UniformRandom, WeightedRandom and RequestSpecified targets
//   - EnvelopeFactory: correlation id, capture timestamp, headers and payload per attempt
//   - MessagePublisher: builds one envelope and publishes it through a Transport
//
// Randomness, clocks and payload text are injected so behaviour can be
// reproduced with seeded sources in tests.
//
// Example usage:
//
//	policy, err := messaging.NewSelectionPolicy(messaging.SelectionAuto, specs)
//	publisher := messaging.NewMessagePublisher(transport, messaging.NewEnvelopeFactory())
//	stream, _ := policy.Next()
//	env, err := publisher.PublishTo(ctx, stream)
package messaging
