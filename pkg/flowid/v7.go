package flowid

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

type v7Generator struct{}

// NewV7Generator returns the default generator, backed by RFC 9562 version 7 UUIDs:
// 48-bit millisecond timestamp, version nibble, variant bits and random remainder
// drawn from crypto/rand.
func NewV7Generator() Generator {
	return v7Generator{}
}

func (v7Generator) TraceID() TraceID {
	id, err := uuid.NewV7()
	if err != nil {
		return fallbackTraceID()
	}
	return TraceID(id)
}

func (v7Generator) SpanID() SpanID {
	for range 3 {
		id, err := uuid.NewV7()
		if err != nil {
			break
		}
		if span := spanFromLow(id); span.IsValid() {
			return span
		}
	}
	return randomSpanID()
}

// fallbackTraceID keeps the time-ordered layout when uuid generation fails.
func fallbackTraceID() TraceID {
	var id TraceID
	_, _ = rand.Read(id[6:])
	ms := uint64(time.Now().UnixMilli())
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], ms)
	copy(id[:6], ts[2:])
	id[6] = (id[6] & 0x0f) | 0x70
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
