package dispatch

import (
	"context"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
)

// Lifecycle is the point at which a handler observes flows.
type Lifecycle int

const (
	// FlowFinished handlers receive every flow as it closes.
	FlowFinished Lifecycle = iota
	// RootFlowFinished handlers receive the batch of a root flow once it closes.
	RootFlowFinished
)

func (l Lifecycle) String() string {
	if l == RootFlowFinished {
		return "root_flow_finished"
	}
	return "flow_finished"
}

// Outcome filters handlers by how the flow ended.
type Outcome int

const (
	OutcomeAny Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "any"
	}
}

// Invocation is what a handler receives.
type Invocation struct {
	Lifecycle Lifecycle

	// Record is the closed flow, or the root of Batch.
	Record flow.Record

	// Batch is set for RootFlowFinished: the root followed by its descendants in start order.
	Batch []flow.Record

	// ErrorType is the declared type the failure was classified as, "" on success.
	ErrorType string

	// Args holds the resolved bindings by parameter name.
	Args map[string]any
}

// Arg returns a bound value.
func (i Invocation) Arg(param string) (any, bool) {
	v, ok := i.Args[param]
	return v, ok
}

// ArgAs returns a bound value converted to T.
func ArgAs[T any](inv Invocation, param string) (T, bool) {
	v, ok := inv.Args[param].(T)
	return v, ok
}

// HandlerFunc handles one invocation. Errors and panics are isolated by the bus.
type HandlerFunc func(ctx context.Context, inv Invocation) error

// Handler declares when a function runs.
type Handler struct {
	// Method names the handler in logs and configuration errors.
	Method string

	Lifecycle Lifecycle

	// Flow is the exact flow name, or "" to match any name in scope.
	Flow string

	Outcome Outcome

	// ErrorType restricts a FAILURE handler to a declared type and its descendants.
	ErrorType string

	// NotMatched marks the hook run when nothing else in the component fired.
	// On the fallback component it is the global last resort instead. Such
	// hooks take no Flow, Outcome or ErrorType.
	NotMatched bool

	Bindings []Binding
	Func     HandlerFunc
}

func (h Handler) wildcard() bool {
	return h.Flow == ""
}

// Component is a group of handlers sharing a scope.
type Component struct {
	Name string

	// Scope lists flow name prefixes. Empty means every flow.
	Scope []string

	// Fallback makes the component's not-matched hooks the global fallback.
	Fallback bool

	Handlers []Handler
}
