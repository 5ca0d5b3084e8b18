// Package contracts defines the data shared by every component of the load
// generator:
//   - StreamSpec: a stream to provision and, optionally, its selection weight
//   - Envelope: one outbound message with its correlation id and capture time
//
// Both are plain values. StreamSpecs are read once at startup; an Envelope is
// built fresh for every publish attempt and never modified afterwards.
package contracts
