// Package health runs registered checks concurrently and serves the result
// over HTTP. Checkers cover the broker connection, the channel pool, the
// provisioned streams and the publish loop.
package health
