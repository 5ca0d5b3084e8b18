package contracts

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TransactionIDHeader carries the correlation id of a message
	TransactionIDHeader = "x-stream-transaction-id"
	// TimestampHeader carries the capture time in milliseconds since the epoch
	TimestampHeader = "x-stream-timestamp-ms"
	// TransactionIDPrefix starts every correlation id
	TransactionIDPrefix = "transaction_"
)

// Envelope is one outbound message
type Envelope struct {
	CorrelationID string
	CapturedAt    int64 // milliseconds since the epoch
	Headers       map[string]interface{}
	Payload       []byte
}

// Time returns the capture timestamp as a time.Time
func (e *Envelope) Time() time.Time {
	return time.UnixMilli(e.CapturedAt)
}

// Header returns a header value and whether it was present
func (e *Envelope) Header(key string) (interface{}, bool) {
	v, ok := e.Headers[key]
	return v, ok
}

// IsTransactionID reports whether id has the transaction_<uuid> shape
func IsTransactionID(id string) bool {
	rest, ok := strings.CutPrefix(id, TransactionIDPrefix)
	if !ok || len(rest) != 36 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
