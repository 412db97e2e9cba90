package zaplog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsAndExtractor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	extractor := func(ctx context.Context) []observability.Field {
		return []observability.Field{observability.String("trace_id", "abc")}
	}
	logger := NewFromZap(zap.New(core), extractor)

	child := logger.With(observability.String("component", "bus"))
	child.Warn(context.Background(), "handler failed",
		observability.String("method", "OnCreated"),
		observability.Error(errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "handler failed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "bus", fields["component"])
	assert.Equal(t, "OnCreated", fields["method"])
	assert.Equal(t, "abc", fields["trace_id"])
	assert.Equal(t, "boom", fields["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:       observability.LogLevelWarn,
		Format:      observability.LogFormatJSON,
		ServiceName: "orders",
		Output:      &buf,
	})

	ctx := context.Background()
	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "hidden")
	logger.Error(ctx, "visible", observability.Int("attempt", 2))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "orders", entry["service"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestConvertLevel(t *testing.T) {
	tests := map[observability.LogLevel]zapcore.Level{
		observability.LogLevelDebug: zapcore.DebugLevel,
		observability.LogLevelInfo:  zapcore.InfoLevel,
		observability.LogLevelWarn:  zapcore.WarnLevel,
		observability.LogLevelError: zapcore.ErrorLevel,
		"verbose":                   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, convertLevel(in), string(in))
	}
}
