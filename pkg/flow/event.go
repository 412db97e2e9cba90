package flow

import (
	"encoding/json"
	"maps"
	"time"
)

// Event is a step folded into the event list of its enclosing flow.
type Event struct {
	Name string

	// StartTime and EndTime are unix epoch nanoseconds. EndTime is zero when absent.
	StartTime int64
	EndTime   int64

	Attributes        Attributes
	DroppedAttributes int

	// Context is the step scoped side channel. It is never part of Attributes
	// and is not serialized; handlers read it through bindings.
	Context map[string]any
}

// Duration returns EndTime - StartTime, or zero when the event has no end.
func (e Event) Duration() time.Duration {
	if e.EndTime == 0 {
		return 0
	}
	return time.Duration(e.EndTime - e.StartTime)
}

func (e Event) clone() Event {
	e.Context = maps.Clone(e.Context)
	return e
}

type eventJSON struct {
	Name                   string      `json:"name"`
	StartTimeUnixNano      int64       `json:"startTimeUnixNano"`
	EndTimeUnixNano        int64       `json:"endTimeUnixNano,omitempty"`
	Attributes             *Attributes `json:"attributes,omitempty"`
	DroppedAttributesCount int         `json:"droppedAttributesCount,omitempty"`
}

// MarshalJSON renders the event without its context map.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Name:                   e.Name,
		StartTimeUnixNano:      e.StartTime,
		EndTimeUnixNano:        e.EndTime,
		DroppedAttributesCount: e.DroppedAttributes,
	}
	if e.Attributes.Len() > 0 {
		attrs := e.Attributes
		out.Attributes = &attrs
	}
	return json.Marshal(out)
}
