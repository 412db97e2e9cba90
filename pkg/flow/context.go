package flow

import (
	"context"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

type stackKey struct{}

func stackFrom(ctx context.Context) *stack {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(stackKey{}).(*stack)
	return s
}

func withStack(ctx context.Context, s *stack) context.Context {
	return context.WithValue(ctx, stackKey{}, s)
}

// Fork returns a context for a goroutine spawned from ctx. The goroutine
// inherits the units open at spawn time; units it opens later are invisible to
// the parent and the other way round.
func Fork(ctx context.Context) context.Context {
	s := stackFrom(ctx)
	if s == nil {
		return ctx
	}
	return withStack(ctx, s.fork())
}

// Detach returns a context with an empty stack. Flows opened from it are roots.
func Detach(ctx context.Context) context.Context {
	return withStack(ctx, &stack{})
}

// Attach returns a context with an empty stack whose first flow continues the
// given remote identifiers instead of starting a new trace.
func Attach(ctx context.Context, remote Remote) context.Context {
	r := remote
	return withStack(ctx, &stack{remote: &r})
}

// RemoteOf returns the identifiers of the current flow so another call stack
// can Attach to it.
func RemoteOf(ctx context.Context) (Remote, bool) {
	e := currentFlowEntry(ctx)
	if e == nil {
		return Remote{}, false
	}
	ids := e.flow.ids()
	return Remote{TraceID: ids.Trace, SpanID: ids.Span, CorrelationID: e.flow.correlationID()}, true
}

func currentEntry(ctx context.Context) *entry {
	if s := stackFrom(ctx); s != nil {
		return s.current()
	}
	return nil
}

func currentFlowEntry(ctx context.Context) *entry {
	if s := stackFrom(ctx); s != nil {
		return s.currentFlow()
	}
	return nil
}

// SetAttribute sets one attribute on the current unit. Inside a step it lands
// on the step event. It reports false when nothing is open.
func SetAttribute(ctx context.Context, key string, value any) bool {
	return SetAttributes(ctx, observability.Any(key, value))
}

// SetAttributes sets attributes on the current unit.
func SetAttributes(ctx context.Context, fields ...observability.Field) bool {
	e := currentEntry(ctx)
	switch {
	case e == nil:
		return false
	case e.isFlow():
		e.flow.setAttributes(fields...)
	default:
		e.step.setAttributes(fields...)
	}
	return true
}

// PutContext stores a value in the context map of the current unit. Context
// values are never serialized; dispatch handlers bind them by key.
func PutContext(ctx context.Context, key string, value any) bool {
	e := currentEntry(ctx)
	switch {
	case e == nil:
		return false
	case e.isFlow():
		e.flow.putContext(key, value)
	default:
		e.step.putContext(key, value)
	}
	return true
}

// AddEvent appends a point-in-time event to the current flow.
func AddEvent(ctx context.Context, name string, fields ...observability.Field) bool {
	e := currentFlowEntry(ctx)
	if e == nil {
		return false
	}
	now := e.flow.clockNow()
	e.flow.addEvent(Event{Name: name, StartTime: now.UnixNano(), Attributes: NewAttributes(fields...)})
	return true
}

// SetStatus sets the status of the current flow.
func SetStatus(ctx context.Context, code observability.StatusCode, message string) bool {
	e := currentFlowEntry(ctx)
	if e == nil {
		return false
	}
	e.flow.setStatus(Status{Code: code, Message: message})
	return true
}

// CurrentRecord returns a snapshot of the current flow, without end time.
func CurrentRecord(ctx context.Context) (Record, bool) {
	e := currentFlowEntry(ctx)
	if e == nil {
		return Record{}, false
	}
	return e.flow.snapshot(), true
}

// CorrelationID returns the correlation id of the current flow, or "".
func CorrelationID(ctx context.Context) string {
	if e := currentFlowEntry(ctx); e != nil {
		return e.flow.correlationID()
	}
	return ""
}

// LogFields is an observability.ContextExtractor that stamps log entries with
// the identifiers of the current flow.
func LogFields(ctx context.Context) []observability.Field {
	e := currentFlowEntry(ctx)
	if e == nil {
		return nil
	}
	ids := e.flow.ids()
	return []observability.Field{
		observability.String("trace_id", ids.Trace.String()),
		observability.String("span_id", ids.Span.String()),
		observability.String("correlation_id", e.flow.correlationID()),
	}
}

var _ observability.ContextExtractor = LogFields
