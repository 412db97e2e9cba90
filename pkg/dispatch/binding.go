package dispatch

import (
	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
)

// Source selects where a binding looks for its value.
type Source int

const (
	// SourceAny looks in attributes, then the flow context, then step contexts
	// newest first, then the failure.
	SourceAny Source = iota
	SourceAttribute
	// SourceContext looks in the flow context, then step contexts newest first.
	SourceContext
	SourceError
)

// Binding maps a handler parameter to a value of the flow.
type Binding struct {
	Param    string
	Key      string
	Source   Source
	Optional bool
}

// Attr binds param to the attribute key.
func Attr(param, key string) Binding {
	return Binding{Param: param, Key: key, Source: SourceAttribute}
}

// Ctx binds param to the context value key.
func Ctx(param, key string) Binding {
	return Binding{Param: param, Key: key, Source: SourceContext}
}

// Value binds param to key wherever it is found.
func Value(param, key string) Binding {
	return Binding{Param: param, Key: key, Source: SourceAny}
}

// Err binds param to the failure of the flow.
func Err(param string) Binding {
	return Binding{Param: param, Source: SourceError}
}

// Optional returns b without the required flag.
func Optional(b Binding) Binding {
	b.Optional = true
	return b
}

// bind resolves every binding of h against rec. It stops at the first
// missing required binding.
func bind(component string, h Handler, rec flow.Record) (map[string]any, *BindingError) {
	if len(h.Bindings) == 0 {
		return nil, nil
	}
	args := make(map[string]any, len(h.Bindings))
	for _, b := range h.Bindings {
		v, ok := resolve(b, rec)
		if !ok {
			if b.Optional {
				continue
			}
			return nil, &BindingError{Component: component, Method: h.Method, Param: b.Param, Key: b.Key}
		}
		args[b.Param] = v
	}
	return args, nil
}

func resolve(b Binding, rec flow.Record) (any, bool) {
	switch b.Source {
	case SourceAttribute:
		return rec.Attributes().Get(b.Key)
	case SourceContext:
		return lookupContext(rec, b.Key)
	case SourceError:
		if err := rec.Failure(); err != nil {
			return err, true
		}
		return nil, false
	default:
		if v, ok := rec.Attributes().Get(b.Key); ok {
			return v, true
		}
		if v, ok := lookupContext(rec, b.Key); ok {
			return v, true
		}
		if err := rec.Failure(); err != nil && b.Key == "" {
			return err, true
		}
		return nil, false
	}
}

func lookupContext(rec flow.Record, key string) (any, bool) {
	if v, ok := rec.ContextValue(key); ok {
		return v, true
	}
	events := rec.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if v, ok := events[i].Context[key]; ok {
			return v, true
		}
	}
	return nil, false
}
