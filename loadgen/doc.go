// Package loadgen drives publish attempts against provisioned streams.
//
// A Loop runs attempts strictly one after another, pacing between them, and
// stops on the first failed publish or when its context is cancelled. Bursts
// publish a bounded number of messages to one named stream without pacing and
// are safe to run while a Loop is active.
package loadgen
