package noop

import (
	"context"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// Provider is the observability used when none is configured. It has zero runtime overhead.
type Provider struct {
	logger  *noopLogger
	metrics *noopMetrics
}

// NewProvider creates a new no-op observability provider.
func NewProvider() *Provider {
	return &Provider{
		logger:  &noopLogger{},
		metrics: &noopMetrics{},
	}
}

// Logger returns a no-op logger.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Metrics returns a no-op metrics recorder.
func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// Span is a span that records nothing. Tracers hand it out when there is no
// open unit of work to attach to.
type Span struct{}

func (Span) End() {}

func (Span) SetAttributes(fields ...observability.Field) {}

func (Span) SetStatus(code observability.StatusCode, description string) {}

func (Span) RecordError(err error, fields ...observability.Field) {}

func (Span) AddEvent(name string, fields ...observability.Field) {}

func (Span) Context() observability.SpanContext {
	return spanContext{}
}

type spanContext struct{}

func (spanContext) TraceID() string {
	return ""
}

func (spanContext) SpanID() string {
	return ""
}

func (spanContext) IsSampled() bool {
	return false
}

// noopLogger implements observability.Logger with no-op operations.
type noopLogger struct{}

func (l *noopLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) With(fields ...observability.Field) observability.Logger {
	return l
}

// noopMetrics implements observability.Metrics with no-op operations.
type noopMetrics struct{}

func (m *noopMetrics) Counter(name, description, unit string) observability.Counter {
	return noopCounter{}
}

func (m *noopMetrics) Histogram(name, description, unit string) observability.Histogram {
	return noopHistogram{}
}

func (m *noopMetrics) UpDownCounter(name, description, unit string) observability.UpDownCounter {
	return noopUpDownCounter{}
}

func (m *noopMetrics) Gauge(name, description, unit string, callback observability.GaugeCallback) error {
	return nil
}

type noopCounter struct{}

func (c noopCounter) Add(ctx context.Context, value int64, fields ...observability.Field) {}

func (c noopCounter) Increment(ctx context.Context, fields ...observability.Field) {}

type noopHistogram struct{}

func (h noopHistogram) Record(ctx context.Context, value float64, fields ...observability.Field) {}

type noopUpDownCounter struct{}

func (u noopUpDownCounter) Add(ctx context.Context, value int64, fields ...observability.Field) {}
