package observability

import "context"

// Tracer opens units of work. The flow engine ships an implementation, so code
// written against this interface produces flow records.
type Tracer interface {
	// Start opens a unit of work and returns a context scoped to it.
	// The span must be ended by calling span.End() when the operation completes.
	Start(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, Span)

	// SpanFromContext returns the innermost open span of the context, if any.
	SpanFromContext(ctx context.Context) Span

	// ContextWithSpan returns a context whose current span is the given one.
	ContextWithSpan(ctx context.Context, span Span) context.Context
}
