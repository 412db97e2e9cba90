package config

import (
	"sort"
	"time"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/flowexport"
	"github.com/JailtonJunior94/devkit-flow/pkg/flowid"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/zaplog"
)

// Config is the file/env view of an engine setup.
type Config struct {
	Service ServiceConfig `koanf:"service"`
	IDs     IDConfig      `koanf:"ids"`
	Engine  EngineConfig  `koanf:"engine"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Export  ExportConfig  `koanf:"export"`
}

// ServiceConfig identifies the service emitting flows.
type ServiceConfig struct {
	ID          string            `koanf:"id" validate:"required"`
	Name        string            `koanf:"name"`
	Version     string            `koanf:"version"`
	Environment string            `koanf:"environment" validate:"env"`
	Resource    map[string]string `koanf:"resource"`
}

// IDConfig selects the identifier generator.
type IDConfig struct {
	Strategy string `koanf:"strategy" validate:"oneof=uuidv7 ulid"`
}

// EngineConfig tunes the flow engine.
type EngineConfig struct {
	MaxEventAttributes int `koanf:"max_event_attributes" validate:"gte=1"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// MetricsConfig configures the prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// ExportConfig configures the OTLP span export.
type ExportConfig struct {
	Enabled         bool              `koanf:"enabled"`
	Endpoint        string            `koanf:"endpoint" validate:"required_if=Enabled true"`
	Protocol        string            `koanf:"protocol" validate:"oneof=grpc http"`
	Insecure        bool              `koanf:"insecure"`
	Headers         map[string]string `koanf:"headers"`
	Timeout         time.Duration     `koanf:"timeout" validate:"gte=0"`
	MaxRetries      int               `koanf:"max_retries" validate:"gte=0"`
	InitialInterval time.Duration     `koanf:"initial_interval" validate:"gte=0"`
	MaxInterval     time.Duration     `koanf:"max_interval" validate:"gte=0"`
}

// DefaultConfig returns a Config with sensible defaults. The service id has
// no default.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Environment: "development",
		},
		IDs: IDConfig{
			Strategy: flowid.StrategyUUIDv7,
		},
		Engine: EngineConfig{
			MaxEventAttributes: 128,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "",
		},
		Export: ExportConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			Protocol:        string(flowexport.ProtocolGRPC),
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
	}
}

// defaults flattens DefaultConfig for the confmap provider.
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"service.environment":         d.Service.Environment,
		"ids.strategy":                d.IDs.Strategy,
		"engine.max_event_attributes": d.Engine.MaxEventAttributes,
		"log.level":                   d.Log.Level,
		"log.format":                  d.Log.Format,
		"metrics.enabled":             d.Metrics.Enabled,
		"metrics.namespace":           d.Metrics.Namespace,
		"export.enabled":              d.Export.Enabled,
		"export.endpoint":             d.Export.Endpoint,
		"export.protocol":             d.Export.Protocol,
		"export.timeout":              d.Export.Timeout.String(),
		"export.max_retries":          d.Export.MaxRetries,
		"export.initial_interval":     d.Export.InitialInterval.String(),
		"export.max_interval":         d.Export.MaxInterval.String(),
	}
}

// EngineOptions maps the configuration onto flow engine options.
func (c *Config) EngineOptions() []flow.Option {
	opts := []flow.Option{
		flow.WithServiceID(c.Service.ID),
		flow.WithGenerator(flowid.FromStrategy(c.IDs.Strategy)),
		flow.WithMaxEventAttributes(c.Engine.MaxEventAttributes),
	}
	if fields := c.resourceFields(); len(fields) > 0 {
		opts = append(opts, flow.WithResource(fields...))
	}
	return opts
}

// resourceFields returns the resource map in key order.
func (c *Config) resourceFields() []observability.Field {
	keys := make([]string, 0, len(c.Service.Resource))
	for k := range c.Service.Resource {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]observability.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, observability.String(k, c.Service.Resource[k]))
	}
	return fields
}

// LoggerConfig maps the log section onto the zap logger config. Log lines
// carry the current flow's ids.
func (c *Config) LoggerConfig() zaplog.Config {
	return zaplog.Config{
		Level:       observability.ParseLogLevel(c.Log.Level),
		Format:      observability.LogFormat(c.Log.Format),
		ServiceName: c.serviceName(),
		Extractor:   flow.LogFields,
	}
}

// ExportOptions maps the export section onto flowexport options.
func (c *Config) ExportOptions() []flowexport.Option {
	opts := []flowexport.Option{
		flowexport.WithServiceName(c.serviceName()),
		flowexport.WithServiceVersion(c.Service.Version),
		flowexport.WithEnvironment(c.Service.Environment),
		flowexport.WithEndpoint(c.Export.Endpoint),
		flowexport.WithProtocol(flowexport.ParseProtocol(c.Export.Protocol)),
		flowexport.WithInsecure(c.Export.Insecure),
		flowexport.WithRetry(c.Export.MaxRetries, c.Export.InitialInterval, c.Export.MaxInterval),
	}
	if c.Export.Timeout > 0 {
		opts = append(opts, flowexport.WithTimeout(c.Export.Timeout))
	}
	if len(c.Export.Headers) > 0 {
		opts = append(opts, flowexport.WithHeaders(c.Export.Headers))
	}
	return opts
}

// FlowExportConfig builds the flowexport config the options describe.
func (c *Config) FlowExportConfig() *flowexport.Config {
	cfg := flowexport.DefaultConfig()
	for _, opt := range c.ExportOptions() {
		opt(cfg)
	}
	return cfg
}

func (c *Config) serviceName() string {
	if c.Service.Name != "" {
		return c.Service.Name
	}
	return c.Service.ID
}
