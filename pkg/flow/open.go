package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// openRecord is a flow still running. It is mutated through the context API
// and frozen into a Record exactly once, on exit.
type openRecord struct {
	mu      sync.Mutex
	data    RecordData
	started time.Time
	clock   clockz.Clock
}

func newOpenRecord(data RecordData, clock clockz.Clock) (*openRecord, error) {
	started := data.StartTime
	rec, err := NewRecord(data)
	if err != nil {
		return nil, err
	}
	return &openRecord{data: rec.data, started: started, clock: clock}, nil
}

func (o *openRecord) clockNow() time.Time {
	return o.clock.Now()
}

// ids are fixed at construction and read without locking.
func (o *openRecord) ids() IDs {
	return o.data.IDs
}

func (o *openRecord) correlationID() string {
	return o.data.CorrelationID
}

func (o *openRecord) setAttributes(fields ...observability.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data.Attributes = o.data.Attributes.With(fields...)
}

func (o *openRecord) putContext(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.data.Context == nil {
		o.data.Context = make(map[string]any)
	}
	o.data.Context[key] = value
}

func (o *openRecord) addEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data.Events = append(o.data.Events, e)
}

func (o *openRecord) setStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data.Status = &s
}

func (o *openRecord) snapshot() Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Record{data: copyData(o.data)}
}

// freeze stamps the end instant and the outcome on a copy. A failure with no
// explicit status sets ERROR.
func (o *openRecord) freeze(end time.Time, failure error) Record {
	o.mu.Lock()
	defer o.mu.Unlock()

	d := copyData(o.data)
	d.EndTime = end.Round(0)
	d.Failure = failure
	if failure != nil && d.Status == nil {
		d.Status = &Status{Code: observability.StatusCodeError, Message: failure.Error()}
	}

	duration := end.Sub(o.started)
	if duration < 0 {
		duration = 0
	}
	return Record{data: d, duration: duration}
}

// openStep is a step waiting to be folded into its flow.
type openStep struct {
	mu      sync.Mutex
	name    string
	started time.Time
	attrs   Attributes
	dropped int
	limit   int
	context map[string]any
}

func newOpenStep(name string, started time.Time, limit int, fields ...observability.Field) *openStep {
	s := &openStep{name: name, started: started, limit: limit}
	s.setAttributes(fields...)
	return s
}

func (s *openStep) setAttributes(fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		if _, exists := s.attrs.Get(f.Key); !exists && s.attrs.Len() >= s.limit {
			s.dropped++
			continue
		}
		s.attrs = s.attrs.With(f)
	}
}

func (s *openStep) putContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.context == nil {
		s.context = make(map[string]any)
	}
	s.context[key] = value
}

// fold turns the step into an event. The duration comes from the monotonic
// readings; the wall clock end is taken from the same reading and the start is
// derived from it.
func (s *openStep) fold(end time.Time, failure error) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := end.Sub(s.started)
	if duration < 0 {
		duration = 0
	}
	wallEnd := end.Round(0)

	attrs := s.attrs
	if failure != nil {
		attrs = attrs.With(
			observability.String("exception.type", fmt.Sprintf("%T", failure)),
			observability.String("exception.message", failure.Error()),
		)
	}
	return Event{
		Name:              s.name,
		StartTime:         wallEnd.Add(-duration).UnixNano(),
		EndTime:           wallEnd.UnixNano(),
		Attributes:        attrs,
		DroppedAttributes: s.dropped,
		Context:           s.context,
	}
}
