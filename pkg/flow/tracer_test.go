package flow_test

import (
	"context"
	"errors"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

func (s *EngineSuite) TestTracerStartOpensFlow() {
	tracer := s.engine.Tracer()

	ctx, span := tracer.Start(s.ctx, "http.request",
		observability.WithSpanKind(observability.SpanKindServer),
		observability.WithAttributes(observability.String("http.method", "POST")),
	)
	span.SetAttributes(observability.Int("http.status_code", 201))
	span.AddEvent("validated")
	s.Equal(span.Context().TraceID(), flow.CorrelationID(ctx))
	s.True(span.Context().IsSampled())
	span.End()
	span.End()

	s.Require().Len(s.receiver.finished, 1)
	rec := s.receiver.last()
	s.Equal("http.request", rec.Name())
	s.Equal(observability.SpanKindServer, rec.Kind())
	s.Equal(2, rec.Attributes().Len())
	s.Require().Len(rec.Events(), 1)
	s.Equal("validated", rec.Events()[0].Name)
}

func (s *EngineSuite) TestTracerRecordErrorFailsFlow() {
	tracer := s.engine.Tracer()
	_, span := tracer.Start(s.ctx, "db.query")
	span.RecordError(errors.New("timeout"))
	span.End()

	rec := s.receiver.last()
	s.True(rec.Failed())
	s.Equal("exception", rec.Events()[0].Name)
}

func (s *EngineSuite) TestStepTracerFoldsIntoFlow() {
	_ = s.engine.WithFlow(s.ctx, flow.Options{Name: "root"}, func(ctx context.Context) error {
		_, span := s.engine.StepTracer().Start(ctx, "cache.lookup")
		span.SetAttributes(observability.Bool("hit", true))
		span.End()
		return nil
	})

	rec := s.receiver.last()
	s.Require().Len(rec.Events(), 1)
	hit, _ := rec.Events()[0].Attributes.Get("hit")
	s.Equal(true, hit)
}

func (s *EngineSuite) TestSpanFromContext() {
	tracer := s.engine.Tracer()
	s.Equal(noop.Span{}, tracer.SpanFromContext(s.ctx))

	_ = s.engine.WithFlow(s.ctx, flow.Options{Name: "root"}, func(ctx context.Context) error {
		current := tracer.SpanFromContext(ctx)
		current.SetAttributes(observability.String("via", "facade"))
		current.End()
		s.True(flow.SetAttribute(ctx, "still", "open"))
		return nil
	})

	rec := s.receiver.last()
	v, _ := rec.Attributes().Get("via")
	s.Equal("facade", v)
	s.Equal(2, rec.Attributes().Len())
}

func (s *EngineSuite) TestStepSpanStatusAndErrorStayOnStep() {
	err := s.engine.WithFlow(s.ctx, flow.Options{Name: "root"}, func(ctx context.Context) error {
		_, span := s.engine.StepTracer().Start(ctx, "cache.lookup")
		span.SetStatus(observability.StatusCodeError, "miss")
		span.RecordError(errors.New("cache down"), observability.String("cache", "redis"))
		span.End()
		return nil
	})
	s.Require().NoError(err)

	rec := s.receiver.last()
	s.False(rec.Failed())
	_, hasStatus := rec.Status()
	s.False(hasStatus)

	s.Require().Len(rec.Events(), 1)
	ev := rec.Events()[0]
	s.Equal("cache.lookup", ev.Name)

	get := func(key string) any {
		v, _ := ev.Attributes.Get(key)
		return v
	}
	s.Equal("ERROR", get("otel.status_code"))
	s.Equal("miss", get("otel.status_description"))
	s.Equal("redis", get("cache"))
	s.Equal("cache down", get("exception.message"))
}
