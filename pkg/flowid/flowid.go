// Package flowid generates the time-ordered identifiers carried by flow records.
//
// Trace identifiers are 128-bit values whose leading 48 bits hold the unix
// millisecond timestamp, so identifiers sort by creation time at millisecond
// granularity. Span identifiers are 64-bit values taken from the random part of
// a fresh identifier. No generator keeps a counter or shared state beyond its
// entropy source, so they are safe for concurrent use without coordination.
package flowid

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTraceID is returned when a trace id is not 32 hex characters or is all zeros.
	ErrInvalidTraceID = errors.New("invalid trace id")

	// ErrInvalidSpanID is returned when a span id is not 16 hex characters or is all zeros.
	ErrInvalidSpanID = errors.New("invalid span id")
)

// TraceID is a 128-bit trace identifier.
type TraceID [16]byte

// SpanID is a 64-bit span identifier.
type SpanID [8]byte

// String renders the id as 32 lowercase hex characters.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// IsValid reports whether the id has at least one non-zero byte.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String renders the id as 16 lowercase hex characters.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// IsValid reports whether the id has at least one non-zero byte.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// ParseTraceID decodes a 32 character hex string.
func ParseTraceID(value string) (TraceID, error) {
	var id TraceID
	if len(value) != 32 {
		return id, fmt.Errorf("%w: %q", ErrInvalidTraceID, value)
	}
	if _, err := hex.Decode(id[:], []byte(value)); err != nil {
		return TraceID{}, fmt.Errorf("%w: %v", ErrInvalidTraceID, err)
	}
	if !id.IsValid() {
		return TraceID{}, ErrInvalidTraceID
	}
	return id, nil
}

// ParseSpanID decodes a 16 character hex string.
func ParseSpanID(value string) (SpanID, error) {
	var id SpanID
	if len(value) != 16 {
		return id, fmt.Errorf("%w: %q", ErrInvalidSpanID, value)
	}
	if _, err := hex.Decode(id[:], []byte(value)); err != nil {
		return SpanID{}, fmt.Errorf("%w: %v", ErrInvalidSpanID, err)
	}
	if !id.IsValid() {
		return SpanID{}, ErrInvalidSpanID
	}
	return id, nil
}

// Generator produces trace and span identifiers.
type Generator interface {
	TraceID() TraceID
	SpanID() SpanID
}

// spanFromLow takes the low 64 bits of a 128-bit identifier.
func spanFromLow(raw [16]byte) SpanID {
	var id SpanID
	copy(id[:], raw[8:])
	return id
}

// randomSpanID is the last resort when the primary source fails.
func randomSpanID() SpanID {
	var id SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}
