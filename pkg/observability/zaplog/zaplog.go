// Package zaplog implements observability.Logger on top of go.uber.org/zap.
package zaplog

import (
	"context"
	"io"
	"os"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the zap logger configuration.
type Config struct {
	Level       observability.LogLevel
	Format      observability.LogFormat
	ServiceName string

	// Output defaults to os.Stdout.
	Output io.Writer

	// Extractor adds context derived fields (flow ids) to every entry.
	Extractor observability.ContextExtractor
}

// Logger implements observability.Logger.
type Logger struct {
	zap       *zap.Logger
	extractor observability.ContextExtractor
}

// New builds a zap core from the configuration.
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(output), convertLevel(cfg.Level))
	z := zap.New(core)
	if cfg.ServiceName != "" {
		z = z.With(zap.String("service", cfg.ServiceName))
	}
	return NewFromZap(z, cfg.Extractor)
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(z *zap.Logger, extractor observability.ContextExtractor) *Logger {
	return &Logger{zap: z, extractor: extractor}
}

func newEncoder(format observability.LogFormat) zapcore.Encoder {
	if format == observability.LogFormatText {
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
}

func convertLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Debug(msg, l.convert(ctx, fields)...)
}

// Info logs an info-level message.
func (l *Logger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Info(msg, l.convert(ctx, fields)...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Warn(msg, l.convert(ctx, fields)...)
}

// Error logs an error-level message.
func (l *Logger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Error(msg, l.convert(ctx, fields)...)
}

// With creates a child logger carrying the given fields.
func (l *Logger) With(fields ...observability.Field) observability.Logger {
	return &Logger{
		zap:       l.zap.With(toZap(fields)...),
		extractor: l.extractor,
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) convert(ctx context.Context, fields []observability.Field) []zap.Field {
	if l.extractor == nil || ctx == nil {
		return toZap(fields)
	}
	return toZap(append(l.extractor(ctx), fields...))
}

func toZap(fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
