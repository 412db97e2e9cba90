package flow

import "github.com/JailtonJunior94/devkit-flow/pkg/observability"

// Type selects whether a unit of work opens a flow or a step.
type Type int

const (
	// TypeFlow opens a flow record with its own span id.
	TypeFlow Type = iota
	// TypeStep folds into the nearest open flow as an event.
	TypeStep
)

func (t Type) String() string {
	if t == TypeStep {
		return "step"
	}
	return "flow"
}

// Options describes one unit of work handed to Enter.
type Options struct {
	Name string
	Type Type

	// MethodKind overrides ClassKind, which overrides the INTERNAL default.
	MethodKind *observability.SpanKind
	ClassKind  *observability.SpanKind

	Attributes []observability.Field
	Links      []Link
	Extensions map[string]any
	Synthetic  bool
}

// KindOf returns a pointer to k, for use in Options.
func KindOf(k observability.SpanKind) *observability.SpanKind {
	return &k
}

// ResolveKind applies the method > class > INTERNAL precedence.
func ResolveKind(method, class *observability.SpanKind) observability.SpanKind {
	switch {
	case method != nil:
		return *method
	case class != nil:
		return *class
	default:
		return observability.SpanKindInternal
	}
}

// Outcome is how a unit of work ended.
type Outcome struct {
	Err    error
	Result any
	// Panic holds the recovered value when the body panicked.
	Panic any
}

func (o Outcome) failure() error {
	if o.Panic != nil {
		return &PanicError{Value: o.Panic}
	}
	return o.Err
}
