// Package trigger exposes the HTTP surface of the generator.
//
// A request to /publish?queue=<name> publishes a burst of messages to the
// named stream and answers 201 once every message was accepted. Health,
// readiness, liveness and Prometheus routes share the same server.
//
//	s := trigger.NewServer(loop, trigger.WithHealth(registry))
//	_ = s.ListenAndServe(ctx, ":8080")
package trigger
