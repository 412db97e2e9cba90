package flow

import (
	"sync"

	"github.com/JailtonJunior94/devkit-flow/pkg/flowid"
)

// entry is one open flow or step on a stack.
type entry struct {
	flow *openRecord
	step *openStep

	// owner is the flow a step folds into; for flows it is the entry itself.
	owner *entry

	batch *rootBatch
	slot  int
}

func (e *entry) isFlow() bool {
	return e.flow != nil
}

// stack is the per call stack list of open units. It is never shared between
// goroutines: Fork hands a copy to a spawned goroutine.
type stack struct {
	entries []*entry
	remote  *Remote
}

func (s *stack) current() *entry {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

// currentFlow returns the nearest open flow, skipping steps.
func (s *stack) currentFlow() *entry {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].isFlow() {
			return s.entries[i]
		}
	}
	return nil
}

func (s *stack) push(e *entry) {
	s.entries = append(s.entries, e)
}

// pop removes expected from the top. When the top is something else the
// whole stack is cleared and pop reports false: a corrupted stack loses its
// open units instead of attributing data to the wrong one.
func (s *stack) pop(expected *entry) bool {
	if top := s.current(); top != nil && top == expected {
		s.entries[len(s.entries)-1] = nil
		s.entries = s.entries[:len(s.entries)-1]
		return true
	}
	clear(s.entries)
	s.entries = s.entries[:0]
	return false
}

func (s *stack) depth() int {
	return len(s.entries)
}

func (s *stack) fork() *stack {
	return &stack{
		entries: append([]*entry(nil), s.entries...),
		remote:  s.remote,
	}
}

// Remote carries identifiers received from another call stack.
type Remote struct {
	TraceID       flowid.TraceID
	SpanID        flowid.SpanID
	CorrelationID string
}

// rootBatch collects a root flow and its descendants. Slots are reserved in
// start order, so the root always sits in slot zero. It is shared by forked
// stacks and therefore locked.
type rootBatch struct {
	mu      sync.Mutex
	records []Record
	filled  []bool
	closed  bool
}

func (b *rootBatch) reserve() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return -1
	}
	b.records = append(b.records, Record{})
	b.filled = append(b.filled, false)
	return len(b.records) - 1
}

// fill stores rec in its slot. Records finishing after the root are refused.
func (b *rootBatch) fill(slot int, rec Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || slot < 0 || slot >= len(b.records) {
		return false
	}
	b.records[slot] = rec
	b.filled[slot] = true
	return true
}

// close returns the finished records in start order and refuses further fills.
func (b *rootBatch) close() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	out := make([]Record, 0, len(b.records))
	for i, rec := range b.records {
		if b.filled[i] {
			out = append(out, rec)
		}
	}
	return out
}
