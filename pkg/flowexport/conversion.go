package flowexport

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// Attribute keys added to every converted span.
const (
	CorrelationIDKey = "flow.correlation_id"
	PromotedKey      = "flow.promoted"
	SyntheticKey     = "flow.synthetic"
	EventEndKey      = "flow.event.end_time_unix_nano"
)

// Converter turns flow records into OpenTelemetry span snapshots.
type Converter struct {
	scope          instrumentation.Scope
	serviceName    string
	serviceVersion string
	environment    string
}

// NewConverter builds a converter from cfg. An empty service name falls back
// to the record's service id.
func NewConverter(cfg *Config) *Converter {
	return &Converter{
		scope:          instrumentation.Scope{Name: cfg.ScopeName, Version: cfg.ScopeVersion},
		serviceName:    cfg.ServiceName,
		serviceVersion: cfg.ServiceVersion,
		environment:    cfg.Environment,
	}
}

// SpanStub converts one record. Context values are in-process only and are
// not exported.
func (c *Converter) SpanStub(rec flow.Record) tracetest.SpanStub {
	ids := rec.IDs()
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    oteltrace.TraceID(ids.Trace),
		SpanID:     oteltrace.SpanID(ids.Span),
		TraceFlags: oteltrace.FlagsSampled,
	})

	var parent oteltrace.SpanContext
	if ids.Parent.IsValid() {
		parent = oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
			TraceID:    oteltrace.TraceID(ids.Trace),
			SpanID:     oteltrace.SpanID(ids.Parent),
			TraceFlags: oteltrace.FlagsSampled,
			Remote:     rec.IsRoot(),
		})
	}

	attrs := convertFields(rec.Attributes().Fields())
	attrs = append(attrs, attribute.String(CorrelationIDKey, rec.CorrelationID()))
	if rec.Promoted() {
		attrs = append(attrs, attribute.Bool(PromotedKey, true))
	}
	if rec.Synthetic() {
		attrs = append(attrs, attribute.Bool(SyntheticKey, true))
	}

	stub := tracetest.SpanStub{
		Name:                 rec.Name(),
		SpanContext:          sc,
		Parent:               parent,
		SpanKind:             convertSpanKind(rec.Kind()),
		StartTime:            rec.StartTime(),
		EndTime:              rec.EndTime(),
		Attributes:           attrs,
		Resource:             c.resource(rec),
		InstrumentationScope: c.scope,
	}

	for _, ev := range rec.Events() {
		evAttrs := convertFields(ev.Attributes.Fields())
		if ev.EndTime != 0 {
			evAttrs = append(evAttrs, attribute.Int64(EventEndKey, ev.EndTime))
		}
		stub.Events = append(stub.Events, sdktrace.Event{
			Name:                  ev.Name,
			Time:                  time.Unix(0, ev.StartTime),
			Attributes:            evAttrs,
			DroppedAttributeCount: ev.DroppedAttributes,
		})
	}

	for _, l := range rec.Links() {
		stub.Links = append(stub.Links, sdktrace.Link{
			SpanContext: oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
				TraceID: oteltrace.TraceID(l.TraceID),
				SpanID:  oteltrace.SpanID(l.SpanID),
				Remote:  true,
			}),
			Attributes: convertFields(l.Attributes.Fields()),
		})
	}

	if status, ok := rec.Status(); ok {
		stub.Status = sdktrace.Status{Code: convertStatusCode(status.Code), Description: status.Message}
		if stub.Status.Code != codes.Error {
			stub.Status.Description = ""
		}
	}
	return stub
}

// SpanStubs converts a batch in order.
func (c *Converter) SpanStubs(batch []flow.Record) tracetest.SpanStubs {
	stubs := make(tracetest.SpanStubs, 0, len(batch))
	for _, rec := range batch {
		stubs = append(stubs, c.SpanStub(rec))
	}
	return stubs
}

// ReadOnlySpans converts a batch into spans an sdktrace.SpanExporter accepts.
func (c *Converter) ReadOnlySpans(batch []flow.Record) []sdktrace.ReadOnlySpan {
	return c.SpanStubs(batch).Snapshots()
}

func (c *Converter) resource(rec flow.Record) *resource.Resource {
	name := c.serviceName
	if name == "" {
		name = rec.ServiceID()
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if c.serviceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(c.serviceVersion))
	}
	if c.environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(c.environment))
	}
	attrs = append(attrs, convertFields(rec.Resource().Fields())...)
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// convertField converts an observability.Field to an OpenTelemetry attribute.
func convertField(field observability.Field) attribute.KeyValue {
	switch v := field.Value.(type) {
	case string:
		return attribute.String(field.Key, v)
	case int:
		return attribute.Int(field.Key, v)
	case int64:
		return attribute.Int64(field.Key, v)
	case float64:
		return attribute.Float64(field.Key, v)
	case bool:
		return attribute.Bool(field.Key, v)
	case []string:
		return attribute.StringSlice(field.Key, v)
	case time.Duration:
		return attribute.Int64(field.Key, v.Milliseconds())
	case error:
		return attribute.String(field.Key, v.Error())
	default:
		return attribute.String(field.Key, fmt.Sprintf("%v", v))
	}
}

func convertFields(fields []observability.Field) []attribute.KeyValue {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(fields))
	for i, field := range fields {
		attrs[i] = convertField(field)
	}
	return attrs
}

func convertSpanKind(kind observability.SpanKind) oteltrace.SpanKind {
	switch kind {
	case observability.SpanKindServer:
		return oteltrace.SpanKindServer
	case observability.SpanKindClient:
		return oteltrace.SpanKindClient
	case observability.SpanKindProducer:
		return oteltrace.SpanKindProducer
	case observability.SpanKindConsumer:
		return oteltrace.SpanKindConsumer
	default:
		return oteltrace.SpanKindInternal
	}
}

func convertStatusCode(code observability.StatusCode) codes.Code {
	switch code {
	case observability.StatusCodeOK:
		return codes.Ok
	case observability.StatusCodeError:
		return codes.Error
	default:
		return codes.Unset
	}
}
