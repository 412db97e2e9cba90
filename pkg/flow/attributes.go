package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// Attributes is an immutable, insertion ordered string keyed map.
// Setting an existing key replaces its value in place and keeps its position.
type Attributes struct {
	fields []observability.Field
}

// NewAttributes builds an attribute set from fields. Empty keys are ignored.
func NewAttributes(fields ...observability.Field) Attributes {
	return Attributes{}.With(fields...)
}

// With returns a copy of a with the given fields applied.
func (a Attributes) With(fields ...observability.Field) Attributes {
	if len(fields) == 0 {
		return a
	}
	out := make([]observability.Field, len(a.fields), len(a.fields)+len(fields))
	copy(out, a.fields)

	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		if i := indexOf(out, f.Key); i >= 0 {
			out[i].Value = f.Value
			continue
		}
		out = append(out, f)
	}
	return Attributes{fields: out}
}

// Get returns the value stored under key.
func (a Attributes) Get(key string) (any, bool) {
	if i := indexOf(a.fields, key); i >= 0 {
		return a.fields[i].Value, true
	}
	return nil, false
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	return len(a.fields)
}

// Fields returns a copy of the attributes in insertion order.
func (a Attributes) Fields() []observability.Field {
	out := make([]observability.Field, len(a.fields))
	copy(out, a.fields)
	return out
}

// Map returns the attributes as a plain map.
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.fields))
	for _, f := range a.fields {
		out[f.Key] = f.Value
	}
	return out
}

// MarshalJSON renders the attributes as a JSON object in insertion order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range a.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(jsonValue(f.Value))
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	switch value := v.(type) {
	case error:
		return value.Error()
	case fmt.Stringer:
		return value.String()
	default:
		return v
	}
}

func indexOf(fields []observability.Field, key string) int {
	for i := range fields {
		if fields[i].Key == key {
			return i
		}
	}
	return -1
}
