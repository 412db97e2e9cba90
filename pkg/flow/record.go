package flow

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/JailtonJunior94/devkit-flow/pkg/flowid"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// ServiceIDKey is the resource attribute that may carry the service id.
const ServiceIDKey = "service.id"

// Status is the optional outcome code of a record.
type Status struct {
	Code    observability.StatusCode
	Message string
}

// Link points at a span outside the parent chain.
type Link struct {
	TraceID    flowid.TraceID
	SpanID     flowid.SpanID
	Attributes Attributes
}

// IDs groups the identifiers of a record.
type IDs struct {
	Trace  flowid.TraceID
	Span   flowid.SpanID
	Parent flowid.SpanID
}

// RecordData is the input of NewRecord.
type RecordData struct {
	Name          string
	IDs           IDs
	CorrelationID string
	Kind          observability.SpanKind
	StartTime     time.Time
	EndTime       time.Time
	Attributes    Attributes
	Events        []Event
	Links         []Link
	Status        *Status
	ServiceID     string
	Resource      Attributes
	Extensions    map[string]any
	Synthetic     bool
	Context       map[string]any
	Failure       error
	Promoted      bool
	Root          bool
}

// Record is a frozen flow. Accessors return copies, so a Record can be shared
// between handlers and goroutines.
type Record struct {
	data     RecordData
	duration time.Duration
}

// NewRecord validates data and returns a Record holding a private copy of it.
func NewRecord(data RecordData) (Record, error) {
	if data.Name == "" {
		return Record{}, ErrNameRequired
	}
	if !data.IDs.Trace.IsValid() || !data.IDs.Span.IsValid() {
		return Record{}, ErrInvalidIdentifiers
	}
	serviceID, err := resolveServiceID(data.ServiceID, data.Resource)
	if err != nil {
		return Record{}, err
	}
	data.ServiceID = serviceID
	if _, ok := data.Resource.Get(ServiceIDKey); !ok {
		data.Resource = data.Resource.With(observability.String(ServiceIDKey, serviceID))
	}
	if data.CorrelationID == "" {
		data.CorrelationID = data.IDs.Trace.String()
	}

	r := Record{data: copyData(data)}
	if !data.EndTime.IsZero() {
		r.duration = data.EndTime.Sub(data.StartTime)
	}
	return r, nil
}

func resolveServiceID(top string, resource Attributes) (string, error) {
	var fromResource string
	if v, ok := resource.Get(ServiceIDKey); ok && v != nil {
		fromResource = fmt.Sprint(v)
	}
	switch {
	case top == "" && fromResource == "":
		return "", ErrServiceIDMissing
	case top != "" && fromResource != "" && top != fromResource:
		return "", fmt.Errorf("%w: %q != %q", ErrServiceIDConflict, top, fromResource)
	case top != "":
		return top, nil
	default:
		return fromResource, nil
	}
}

func copyData(d RecordData) RecordData {
	d.Events = copyEvents(d.Events)
	d.Links = append([]Link(nil), d.Links...)
	if d.Status != nil {
		s := *d.Status
		d.Status = &s
	}
	d.Extensions = maps.Clone(d.Extensions)
	d.Context = maps.Clone(d.Context)
	d.StartTime = d.StartTime.Round(0)
	d.EndTime = d.EndTime.Round(0)
	return d
}

func copyEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.clone()
	}
	return out
}

// Name is the flow name, the routing key of the dispatch bus.
func (r Record) Name() string { return r.data.Name }
// IDs returns the raw trace, span and parent identifiers.
func (r Record) IDs() IDs { return r.data.IDs }
// TraceID returns the trace id as 32 lower-hex characters.
func (r Record) TraceID() string { return r.data.IDs.Trace.String() }
// SpanID returns the span id as 16 lower-hex characters.
func (r Record) SpanID() string { return r.data.IDs.Span.String() }
// CorrelationID is shared by a root flow and all of its descendants.
func (r Record) CorrelationID() string { return r.data.CorrelationID }
// Kind is the span kind resolved from the method and class kinds.
func (r Record) Kind() observability.SpanKind { return r.data.Kind }
// StartTime is the wall-clock start.
func (r Record) StartTime() time.Time { return r.data.StartTime }
// EndTime is the wall-clock end, zero while the flow is open.
func (r Record) EndTime() time.Time { return r.data.EndTime }
// Attributes returns the flow attributes in insertion order.
func (r Record) Attributes() Attributes { return r.data.Attributes }
// ServiceID identifies the service that produced the record.
func (r Record) ServiceID() string { return r.data.ServiceID }
// Resource returns the resource fields configured on the engine.
func (r Record) Resource() Attributes { return r.data.Resource }
// Synthetic is the flag the caller set in Options.
func (r Record) Synthetic() bool { return r.data.Synthetic }
// Promoted reports whether the record started as a step with no open flow.
func (r Record) Promoted() bool { return r.data.Promoted }
// Failure is the error the unit of work ended with, unchanged.
func (r Record) Failure() error { return r.data.Failure }
// Extensions returns a copy of the free-form extension map.
func (r Record) Extensions() map[string]any { return maps.Clone(r.data.Extensions) }
// Context returns a copy of the flow context map.
func (r Record) Context() map[string]any { return maps.Clone(r.data.Context) }
// Events returns copies of the folded steps and explicit events.
func (r Record) Events() []Event { return copyEvents(r.data.Events) }
// Links returns a copy of the span links.
func (r Record) Links() []Link { return append([]Link(nil), r.data.Links...) }

// ParentSpanID returns the parent span id, or "" for a record without parent.
func (r Record) ParentSpanID() string {
	if !r.data.IDs.Parent.IsValid() {
		return ""
	}
	return r.data.IDs.Parent.String()
}

// IsRoot reports whether the record was the outermost flow of its call stack.
func (r Record) IsRoot() bool {
	return r.data.Root
}

// Failed reports whether the unit of work ended with an error or a panic.
func (r Record) Failed() bool {
	return r.data.Failure != nil
}

// Ended reports whether the record has an end time.
func (r Record) Ended() bool {
	return !r.data.EndTime.IsZero()
}

// Duration is measured on the monotonic clock when the record was produced by the engine.
func (r Record) Duration() time.Duration {
	return r.duration
}

// Status returns the status, if one was set.
func (r Record) Status() (Status, bool) {
	if r.data.Status == nil {
		return Status{}, false
	}
	return *r.data.Status, true
}

// ContextValue reads one key of the flow context map.
func (r Record) ContextValue(key string) (any, bool) {
	v, ok := r.data.Context[key]
	return v, ok
}

type linkJSON struct {
	TraceID    string      `json:"traceId"`
	SpanID     string      `json:"spanId"`
	Attributes *Attributes `json:"attributes,omitempty"`
}

type statusJSON struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type recordJSON struct {
	TraceID           string         `json:"traceId"`
	SpanID            string         `json:"spanId"`
	ParentSpanID      string         `json:"parentSpanId,omitempty"`
	CorrelationID     string         `json:"correlationId,omitempty"`
	Name              string         `json:"name"`
	Kind              string         `json:"kind"`
	StartTimeUnixNano int64          `json:"startTimeUnixNano,omitempty"`
	EndTimeUnixNano   int64          `json:"endTimeUnixNano,omitempty"`
	ServiceID         string         `json:"serviceId"`
	Resource          *Attributes    `json:"resource,omitempty"`
	Attributes        *Attributes    `json:"attributes,omitempty"`
	Events            []Event        `json:"events,omitempty"`
	Links             []linkJSON     `json:"links,omitempty"`
	Status            *statusJSON    `json:"status,omitempty"`
	Extensions        map[string]any `json:"extensions,omitempty"`
	Synthetic         bool           `json:"synthetic,omitempty"`
}

// MarshalJSON renders the compact serialized form. Context, failure and
// promotion are in-process channels and are left out.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		TraceID:       r.TraceID(),
		SpanID:        r.SpanID(),
		ParentSpanID:  r.ParentSpanID(),
		CorrelationID: r.data.CorrelationID,
		Name:          r.data.Name,
		Kind:          r.data.Kind.String(),
		ServiceID:     r.data.ServiceID,
		Events:        r.data.Events,
		Extensions:    r.data.Extensions,
		Synthetic:     r.data.Synthetic,
	}
	if !r.data.StartTime.IsZero() {
		out.StartTimeUnixNano = r.data.StartTime.UnixNano()
	}
	if !r.data.EndTime.IsZero() {
		out.EndTimeUnixNano = r.data.EndTime.UnixNano()
	}
	if r.data.Resource.Len() > 0 {
		res := r.data.Resource
		out.Resource = &res
	}
	if r.data.Attributes.Len() > 0 {
		attrs := r.data.Attributes
		out.Attributes = &attrs
	}
	for _, l := range r.data.Links {
		lj := linkJSON{TraceID: l.TraceID.String(), SpanID: l.SpanID.String()}
		if l.Attributes.Len() > 0 {
			attrs := l.Attributes
			lj.Attributes = &attrs
		}
		out.Links = append(out.Links, lj)
	}
	if r.data.Status != nil {
		out.Status = &statusJSON{Code: r.data.Status.Code.String(), Message: r.data.Status.Message}
	}
	return json.Marshal(out)
}
