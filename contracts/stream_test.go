package contracts

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamSpecs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []StreamSpec
	}{
		{"single", "demo", []StreamSpec{{Name: "demo"}}},
		{"plain list", "a, b,c", []StreamSpec{{Name: "a"}, {Name: "b"}, {Name: "c"}}},
		{"weights", "orders:70,payments:30", []StreamSpec{{Name: "orders", Weight: 70}, {Name: "payments", Weight: 30}}},
		{"mixed", "orders:5,audit", []StreamSpec{{Name: "orders", Weight: 5}, {Name: "audit"}}},
		{"blank entries skipped", ",demo,,", []StreamSpec{{Name: "demo"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStreamSpecs(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty input yields no specs", func(t *testing.T) {
		got, err := ParseStreamSpecs("")
		assert.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("zero weight is rejected", func(t *testing.T) {
		_, err := ParseStreamSpecs("orders:0")
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("negative weight is rejected", func(t *testing.T) {
		_, err := ParseStreamSpecs("orders:-2")
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("non-numeric weight is rejected", func(t *testing.T) {
		_, err := ParseStreamSpecs("orders:lots")
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("weights overflowing int are rejected", func(t *testing.T) {
		_, err := ParseStreamSpecs("a:9223372036854775807,b:1")
		assert.ErrorIs(t, err, ErrInvalidWeight)

		_, err = ParseStreamSpecs(fmt.Sprintf("a:%d,b", math.MaxInt))
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		_, err := ParseStreamSpecs("orders,orders:3")
		assert.ErrorIs(t, err, ErrDuplicateStream)
	})

	t.Run("missing name is rejected", func(t *testing.T) {
		_, err := ParseStreamSpecs(":3")
		assert.ErrorIs(t, err, ErrEmptyStreamName)
	})
}

func TestStreamSpec(t *testing.T) {
	assert.Equal(t, 1, StreamSpec{Name: "a"}.EffectiveWeight())
	assert.Equal(t, 4, StreamSpec{Name: "a", Weight: 4}.EffectiveWeight())
	assert.Equal(t, "a", StreamSpec{Name: "a"}.String())
	assert.Equal(t, "a:4", StreamSpec{Name: "a", Weight: 4}.String())

	specs := []StreamSpec{{Name: "a"}, {Name: "b", Weight: 2}}
	assert.Equal(t, []string{"a", "b"}, StreamNames(specs))
	assert.True(t, HasWeights(specs))
	assert.False(t, HasWeights(specs[:1]))
}

func TestEnvelope(t *testing.T) {
	t.Run("IsTransactionID", func(t *testing.T) {
		assert.True(t, IsTransactionID(TransactionIDPrefix+uuid.NewString()))
		assert.False(t, IsTransactionID(uuid.NewString()))
		assert.False(t, IsTransactionID(TransactionIDPrefix+"123"))
		assert.False(t, IsTransactionID(TransactionIDPrefix+strings.Repeat("-", 36)))
		assert.False(t, IsTransactionID(TransactionIDPrefix+"zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"))
		assert.False(t, IsTransactionID(TransactionIDPrefix+"urn:uuid:"+uuid.NewString()))
	})

	t.Run("Time and Header", func(t *testing.T) {
		env := &Envelope{
			CorrelationID: "transaction_x",
			CapturedAt:    1700000000123,
			Headers:       map[string]interface{}{TransactionIDHeader: "transaction_x"},
		}

		assert.Equal(t, int64(1700000000123), env.Time().UnixMilli())
		v, ok := env.Header(TransactionIDHeader)
		assert.True(t, ok)
		assert.Equal(t, "transaction_x", v)
		_, ok = env.Header("missing")
		assert.False(t, ok)
	})
}
