package flowid

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

type ulidGenerator struct{}

// NewULIDGenerator returns a generator backed by ULIDs (48-bit millisecond
// timestamp followed by 80 random bits). crypto/rand is safe for concurrent use,
// so no monotonic entropy reader is shared between callers.
func NewULIDGenerator() Generator {
	return ulidGenerator{}
}

func (ulidGenerator) TraceID() TraceID {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return fallbackTraceID()
	}
	return TraceID(id)
}

func (ulidGenerator) SpanID() SpanID {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return randomSpanID()
	}
	if span := spanFromLow(id); span.IsValid() {
		return span
	}
	return randomSpanID()
}

// Strategy names accepted by FromStrategy.
const (
	StrategyUUIDv7 = "uuidv7"
	StrategyULID   = "ulid"
)

// FromStrategy maps a configured strategy name to a generator. Unknown names
// fall back to the version 7 generator.
func FromStrategy(name string) Generator {
	if name == StrategyULID {
		return NewULIDGenerator()
	}
	return NewV7Generator()
}
