package flowexport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/JailtonJunior94/devkit-flow/pkg/dispatch"
	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

// ErrExporterClosed is returned by Export after Shutdown.
var ErrExporterClosed = errors.New("exporter is closed")

// Exporter sends root batches to an sdktrace.SpanExporter. Each root batch is
// exported synchronously when the root closes; a failed export is retried a
// bounded number of times and then dropped.
type Exporter struct {
	mu        sync.Mutex
	exporter  sdktrace.SpanExporter
	converter *Converter
	config    *Config
	logger    observability.Logger
	exported  observability.Counter
	failures  observability.Counter
	closed    bool
}

// NewExporter wraps exp. A nil o11y falls back to the no-op provider.
func NewExporter(exp sdktrace.SpanExporter, o11y observability.Observability, opts ...Option) (*Exporter, error) {
	if exp == nil {
		return nil, errors.New("span exporter is required")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export config: %w", err)
	}
	if o11y == nil {
		o11y = noop.NewProvider()
	}

	return &Exporter{
		exporter:  exp,
		converter: NewConverter(cfg),
		config:    cfg,
		logger:    o11y.Logger().With(observability.String("component", "flowexport")),
		exported:  o11y.Metrics().Counter("flow_export_spans_total", "Spans handed to the span exporter", "1"),
		failures:  o11y.Metrics().Counter("flow_export_failures_total", "Batches dropped after the last retry", "1"),
	}, nil
}

var _ flow.Receiver = (*Exporter)(nil)

// FlowFinished is a no-op: flows are exported with their root batch.
func (e *Exporter) FlowFinished(ctx context.Context, rec flow.Record) error {
	return nil
}

// RootFlowFinished exports the batch.
func (e *Exporter) RootFlowFinished(ctx context.Context, batch []flow.Record) error {
	return e.Export(ctx, batch)
}

// Component returns a dispatch component exporting every root batch, for
// wiring the exporter behind the bus instead of directly on the engine.
func (e *Exporter) Component(name string) dispatch.Component {
	return dispatch.Component{
		Name: name,
		Handlers: []dispatch.Handler{{
			Method:    "export",
			Lifecycle: dispatch.RootFlowFinished,
			Func: func(ctx context.Context, inv dispatch.Invocation) error {
				return e.Export(ctx, inv.Batch)
			},
		}},
	}
}

// Export converts batch and hands it to the span exporter.
func (e *Exporter) Export(ctx context.Context, batch []flow.Record) error {
	if len(batch) == 0 {
		return nil
	}
	spans := e.converter.ReadOnlySpans(batch)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExporterClosed
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.config.InitialInterval
	policy.MaxInterval = e.config.MaxInterval
	policy.MaxElapsedTime = 0

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return e.exporter.ExportSpans(ctx, spans)
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Debug(ctx, "span export failed, retrying",
			observability.Duration("wait", wait),
			observability.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.config.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		e.failures.Increment(ctx)
		e.logger.Error(ctx, "span export dropped",
			observability.String("root", batch[0].Name()),
			observability.Int("spans", len(spans)),
			observability.Error(err),
		)
		return fmt.Errorf("export %q: %w", batch[0].Name(), err)
	}

	e.exported.Add(ctx, int64(len(spans)))
	return nil
}

// Shutdown flushes and closes the span exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.exporter.Shutdown(ctx)
}
