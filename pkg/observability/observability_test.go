package observability_test

import (
	"errors"
	"testing"
	"time"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/stretchr/testify/assert"
)

func TestFieldHelpers(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		field observability.Field
		key   string
		value any
	}{
		{name: "string", field: observability.String("order.id", "O-1"), key: "order.id", value: "O-1"},
		{name: "int", field: observability.Int("count", 42), key: "count", value: 42},
		{name: "int64", field: observability.Int64("big", 9223372036854775807), key: "big", value: int64(9223372036854775807)},
		{name: "float64", field: observability.Float64("ratio", 0.5), key: "ratio", value: 0.5},
		{name: "bool", field: observability.Bool("ok", true), key: "ok", value: true},
		{name: "duration", field: observability.Duration("elapsed", time.Second), key: "elapsed", value: time.Second},
		{name: "error", field: observability.Error(boom), key: "error", value: boom},
		{name: "any", field: observability.Any("tags", []string{"a"}), key: "tags", value: []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.field.Key)
			assert.Equal(t, tt.value, tt.field.Value)
		})
	}
}

func TestSpanKindString(t *testing.T) {
	assert.Equal(t, "INTERNAL", observability.SpanKindInternal.String())
	assert.Equal(t, "SERVER", observability.SpanKindServer.String())
	assert.Equal(t, "CLIENT", observability.SpanKindClient.String())
	assert.Equal(t, "PRODUCER", observability.SpanKindProducer.String())
	assert.Equal(t, "CONSUMER", observability.SpanKindConsumer.String())
	assert.Equal(t, "INTERNAL", observability.SpanKind(99).String())
}

func TestStatusCodeString(t *testing.T) {
	assert.Equal(t, "UNSET", observability.StatusCodeUnset.String())
	assert.Equal(t, "OK", observability.StatusCodeOK.String())
	assert.Equal(t, "ERROR", observability.StatusCodeError.String())
}

func TestNewSpanConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := observability.NewSpanConfig(nil)
		assert.Equal(t, observability.SpanKindInternal, cfg.Kind())
		assert.False(t, cfg.KindSet())
		assert.Empty(t, cfg.Attributes())
	})

	t.Run("options applied in order", func(t *testing.T) {
		cfg := observability.NewSpanConfig([]observability.SpanOption{
			observability.WithSpanKind(observability.SpanKindServer),
			observability.WithAttributes(observability.String("a", "1")),
			observability.WithAttributes(observability.String("b", "2")),
		})
		assert.Equal(t, observability.SpanKindServer, cfg.Kind())
		assert.True(t, cfg.KindSet())
		assert.Equal(t, []observability.Field{
			observability.String("a", "1"),
			observability.String("b", "2"),
		}, cfg.Attributes())
	})
}
