package messaging

import (
	"github.com/brianvoe/gofakeit/v7"
)

// PayloadProducer supplies the message body for an envelope
type PayloadProducer interface {
	Payload() []byte
}

// PayloadFunc adapts a function to PayloadProducer
type PayloadFunc func() []byte

// Payload calls f
func (f PayloadFunc) Payload() []byte {
	return f()
}

// LoremProducer produces lorem ipsum sentences of a fixed word count
type LoremProducer struct {
	faker *gofakeit.Faker
	words int
}

// NewLoremProducer creates a producer of words-long sentences. Seed 0 picks a
// random seed. The faker runs in lock mode, so Payload is safe for concurrent use.
func NewLoremProducer(words int, seed uint64) *LoremProducer {
	if words < 1 {
		words = 1
	}
	return &LoremProducer{
		faker: gofakeit.New(seed),
		words: words,
	}
}

// Payload returns one sentence
func (p *LoremProducer) Payload() []byte {
	return []byte(p.faker.LoremIpsumSentence(p.words))
}
