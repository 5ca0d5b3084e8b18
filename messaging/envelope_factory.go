package messaging

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/glimte/streamgen/contracts"
	"github.com/google/uuid"
)

// EnvelopeFactory creates one envelope per publish attempt
type EnvelopeFactory struct {
	mu             sync.Mutex
	random         io.Reader
	now            func() time.Time
	payload        PayloadProducer
	defaultHeaders map[string]interface{}
}

// EnvelopeOption configures the factory
type EnvelopeOption func(*EnvelopeFactory)

// WithIDRandom sets the byte source correlation ids are drawn from.
// Defaults to crypto/rand.
func WithIDRandom(r io.Reader) EnvelopeOption {
	return func(f *EnvelopeFactory) {
		f.random = r
	}
}

// WithClock sets the wall clock used for capture timestamps
func WithClock(now func() time.Time) EnvelopeOption {
	return func(f *EnvelopeFactory) {
		f.now = now
	}
}

// WithPayloadProducer sets where message bodies come from
func WithPayloadProducer(p PayloadProducer) EnvelopeOption {
	return func(f *EnvelopeFactory) {
		f.payload = p
	}
}

// WithDefaultHeaders adds headers to every envelope. They never override the
// transaction id or timestamp headers.
func WithDefaultHeaders(headers map[string]interface{}) EnvelopeOption {
	return func(f *EnvelopeFactory) {
		for k, v := range headers {
			f.defaultHeaders[k] = v
		}
	}
}

// NewEnvelopeFactory creates a factory producing 20-word lorem ipsum payloads
func NewEnvelopeFactory(options ...EnvelopeOption) *EnvelopeFactory {
	f := &EnvelopeFactory{
		random:         rand.Reader,
		now:            time.Now,
		payload:        NewLoremProducer(20, 0),
		defaultHeaders: make(map[string]interface{}),
	}

	for _, opt := range options {
		opt(f)
	}

	return f
}

// CreateEnvelope builds a fresh envelope with a new transaction id
func (f *EnvelopeFactory) CreateEnvelope() (*contracts.Envelope, error) {
	id, err := f.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction id: %w", err)
	}

	correlationID := contracts.TransactionIDPrefix + id.String()
	capturedAt := f.now().UnixMilli()

	headers := make(map[string]interface{}, len(f.defaultHeaders)+2)
	for k, v := range f.defaultHeaders {
		headers[k] = v
	}
	headers[contracts.TransactionIDHeader] = correlationID
	headers[contracts.TimestampHeader] = capturedAt

	return &contracts.Envelope{
		CorrelationID: correlationID,
		CapturedAt:    capturedAt,
		Headers:       headers,
		Payload:       f.payload.Payload(),
	}, nil
}

// newID draws a version 4 uuid; custom readers are not assumed to be concurrency safe
func (f *EnvelopeFactory) newID() (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uuid.NewRandomFromReader(f.random)
}
