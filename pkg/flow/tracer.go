package flow

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

// Tracer exposes the engine through observability.Tracer, so code written
// against the tracing facade produces flow records.
type Tracer struct {
	engine   *Engine
	unitType Type
}

// Tracer returns a tracer whose spans open flows.
func (e *Engine) Tracer() *Tracer {
	return &Tracer{engine: e, unitType: TypeFlow}
}

// StepTracer returns a tracer whose spans open steps.
func (e *Engine) StepTracer() *Tracer {
	return &Tracer{engine: e, unitType: TypeStep}
}

var _ observability.Tracer = (*Tracer)(nil)

// Start opens a unit of work. WithSpanKind maps to the method level kind.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	cfg := observability.NewSpanConfig(opts)
	o := Options{Name: spanName, Type: t.unitType, Attributes: cfg.Attributes()}
	if cfg.KindSet() {
		o.MethodKind = KindOf(cfg.Kind())
	}
	ctx, h := t.engine.Enter(ctx, o)
	sp := &span{engine: t.engine, ctx: ctx, handle: h}
	if h.Tracked() {
		sp.entry = h.entry
	}
	return ctx, sp
}

// SpanFromContext returns the innermost open unit. The returned span does not
// own the unit: End on it is a no-op.
func (t *Tracer) SpanFromContext(ctx context.Context) observability.Span {
	e := currentEntry(ctx)
	if e == nil {
		return noop.Span{}
	}
	return &span{engine: t.engine, ctx: ctx, entry: e}
}

// ContextWithSpan returns ctx when it already carries the span's stack, and
// otherwise a context with a fork of it.
func (t *Tracer) ContextWithSpan(ctx context.Context, sp observability.Span) context.Context {
	s, ok := sp.(*span)
	if !ok || s.handle == nil || s.handle.stack == nil {
		return ctx
	}
	if stackFrom(ctx) == s.handle.stack {
		return ctx
	}
	return withStack(ctx, s.handle.stack.fork())
}

type span struct {
	engine *Engine
	ctx    context.Context
	handle *Handle
	entry  *entry
	err    error
}

func (s *span) End() {
	if s.handle == nil {
		return
	}
	s.engine.Exit(s.ctx, s.handle, Outcome{Err: s.err})
}

func (s *span) SetAttributes(fields ...observability.Field) {
	switch {
	case s.entry == nil:
	case s.entry.isFlow():
		s.entry.flow.setAttributes(fields...)
	default:
		s.entry.step.setAttributes(fields...)
	}
}

// SetStatus sets the flow status. On a step it is kept on the step event as
// otel.status_code and otel.status_description attributes.
func (s *span) SetStatus(code observability.StatusCode, description string) {
	switch {
	case s.entry == nil:
	case s.entry.isFlow():
		s.entry.flow.setStatus(Status{Code: code, Message: description})
	default:
		fields := []observability.Field{observability.String("otel.status_code", code.String())}
		if description != "" {
			fields = append(fields, observability.String("otel.status_description", description))
		}
		s.entry.step.setAttributes(fields...)
	}
}

// RecordError marks the unit as failed when it ends. A flow also gets an
// exception event; a step carries the exception attributes on its own event
// once folded.
func (s *span) RecordError(err error, fields ...observability.Field) {
	if err == nil || s.entry == nil {
		return
	}
	s.err = err
	exception := []observability.Field{
		observability.String("exception.type", fmt.Sprintf("%T", err)),
		observability.String("exception.message", err.Error()),
	}
	switch {
	case s.entry.isFlow():
		s.AddEvent("exception", append(exception, fields...)...)
	case s.handle == nil:
		// Borrowed from the context: the owner's Exit will not see s.err.
		s.entry.step.setAttributes(append(exception, fields...)...)
	default:
		s.entry.step.setAttributes(fields...)
	}
}

// AddEvent appends an event to the owning flow, also when called on a step.
func (s *span) AddEvent(name string, fields ...observability.Field) {
	if s.entry == nil {
		return
	}
	owner := s.entry.owner.flow
	owner.addEvent(Event{Name: name, StartTime: owner.clockNow().UnixNano(), Attributes: NewAttributes(fields...)})
}

func (s *span) Context() observability.SpanContext {
	if s.entry == nil {
		return noop.Span{}.Context()
	}
	return spanContext{ids: s.entry.owner.flow.ids()}
}

type spanContext struct {
	ids IDs
}

func (c spanContext) TraceID() string {
	return c.ids.Trace.String()
}

func (c spanContext) SpanID() string {
	return c.ids.Span.String()
}

// IsSampled is always true: every flow is recorded.
func (c spanContext) IsSampled() bool {
	return true
}
