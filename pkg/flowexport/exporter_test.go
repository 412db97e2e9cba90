package flowexport_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JailtonJunior94/devkit-flow/pkg/dispatch"
	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/flowexport"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/fake"
)

// flakyExporter fails the first failures calls.
type flakyExporter struct {
	*tracetest.InMemoryExporter
	failures int32
	calls    atomic.Int32
}

func (f *flakyExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("collector unavailable")
	}
	return f.InMemoryExporter.ExportSpans(ctx, spans)
}

func fastRetry(n int) flowexport.Option {
	return flowexport.WithRetry(n, time.Millisecond, 2*time.Millisecond)
}

func TestExporter_RetriesThenSucceeds(t *testing.T) {
	flaky := &flakyExporter{InMemoryExporter: tracetest.NewInMemoryExporter(), failures: 2}
	o11y := fake.NewProvider()
	exp, err := flowexport.NewExporter(flaky, o11y, fastRetry(3))
	require.NoError(t, err)

	require.NoError(t, exp.RootFlowFinished(context.Background(), []flow.Record{sampleRecord(t)}))

	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Len(t, flaky.GetSpans(), 1)
	assert.Equal(t, int64(1), o11y.FakeMetrics().GetCounter("flow_export_spans_total").Total())
}

func TestExporter_DropsAfterLastRetry(t *testing.T) {
	flaky := &flakyExporter{InMemoryExporter: tracetest.NewInMemoryExporter(), failures: 10}
	o11y := fake.NewProvider()
	exp, err := flowexport.NewExporter(flaky, o11y, fastRetry(2))
	require.NoError(t, err)

	err = exp.Export(context.Background(), []flow.Record{sampleRecord(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders.create")
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, int64(1), o11y.FakeMetrics().GetCounter("flow_export_failures_total").Total())
}

func TestExporter_FlowFinishedIsNoop(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	exp, err := flowexport.NewExporter(mem, nil)
	require.NoError(t, err)

	require.NoError(t, exp.FlowFinished(context.Background(), sampleRecord(t)))
	require.NoError(t, exp.Export(context.Background(), nil))
	assert.Empty(t, mem.GetSpans())
}

func TestExporter_Shutdown(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	exp, err := flowexport.NewExporter(mem, nil)
	require.NoError(t, err)

	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))
	assert.ErrorIs(t, exp.Export(context.Background(), []flow.Record{sampleRecord(t)}), flowexport.ErrExporterClosed)
}

func TestExporter_BehindDispatchBus(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	exp, err := flowexport.NewExporter(mem, nil)
	require.NoError(t, err)

	reg, err := dispatch.NewRegistry(nil, exp.Component("otlp"))
	require.NoError(t, err)
	engine, err := flow.New(nil, flow.WithServiceID("orders"), flow.WithReceiver(dispatch.NewBus(reg, nil)))
	require.NoError(t, err)

	err = engine.WithFlow(context.Background(), flow.Options{Name: "orders.create"}, func(ctx context.Context) error {
		return engine.WithFlow(ctx, flow.Options{Name: "inventory.reserve"}, func(ctx context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)

	spans := mem.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "orders.create", spans[0].Name)
	assert.Equal(t, "inventory.reserve", spans[1].Name)
	assert.Equal(t, spans[0].SpanContext.SpanID(), spans[1].Parent.SpanID())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []flowexport.Option
		wantErr bool
	}{
		{name: "defaults"},
		{name: "no endpoint", opts: []flowexport.Option{flowexport.WithEndpoint("")}, wantErr: true},
		{name: "insecure in production", opts: []flowexport.Option{flowexport.WithInsecure(true), flowexport.WithEnvironment("production")}, wantErr: true},
		{name: "insecure in development", opts: []flowexport.Option{flowexport.WithInsecure(true)}},
		{name: "negative retries", opts: []flowexport.Option{fastRetry(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := flowexport.DefaultConfig()
			for _, opt := range tt.opts {
				opt(cfg)
			}
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
				return
			}
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestNewOTLPExporter(t *testing.T) {
	for _, protocol := range []flowexport.Protocol{flowexport.ProtocolGRPC, flowexport.ProtocolHTTP} {
		t.Run(string(protocol), func(t *testing.T) {
			cfg := flowexport.DefaultConfig()
			cfg.Protocol = protocol
			cfg.Insecure = true
			cfg.Headers = map[string]string{"x-tenant": "acme"}

			exp, err := flowexport.NewOTLPExporter(context.Background(), cfg)
			require.NoError(t, err)
			require.NotNil(t, exp)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = exp.Shutdown(ctx)
		})
	}

	cfg := flowexport.DefaultConfig()
	cfg.Endpoint = ""
	_, err := flowexport.NewOTLPExporter(context.Background(), cfg)
	assert.Error(t, err)

	assert.Equal(t, flowexport.ProtocolHTTP, flowexport.ParseProtocol("http/protobuf"))
	assert.Equal(t, flowexport.ProtocolGRPC, flowexport.ParseProtocol("bogus"))
}
