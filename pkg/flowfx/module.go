package flowfx

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/JailtonJunior94/devkit-flow/pkg/config"
	"github.com/JailtonJunior94/devkit-flow/pkg/dispatch"
	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/flowexport"
	"github.com/JailtonJunior94/devkit-flow/pkg/flowhttp"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/prommetrics"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/zaplog"
)

// Module provides the engine and its dispatch pipeline from a *config.Config.
// Observers join through the "components" group.
//
//	fx.New(
//	    flowfx.ConfigModule("flow.yaml"),
//	    flowfx.Module,
//	    fx.Provide(flowfx.AsComponent(newAuditComponent)),
//	)
var Module = fx.Module("flow",
	fx.Provide(
		ProvideObservability,
		ProvideExporter,
		ProvideRegistry,
		ProvideBus,
		ProvideEngine,
	),
)

// ServerModule provides a flowhttp.Server whose routes run as flows and
// starts it with the application. Routes join through the "routes" group.
var ServerModule = fx.Module("flowhttp",
	fx.Provide(ProvideServer),
	fx.Invoke(RegisterServerLifecycle),
)

// ConfigModule loads the configuration from path and the FLOW_* environment.
func ConfigModule(path string) fx.Option {
	return fx.Provide(func() (*config.Config, error) {
		return config.Load(path, nil)
	})
}

// AsComponent annotates a constructor of dispatch.Component for the components group.
func AsComponent(constructor any) any {
	return fx.Annotate(constructor, fx.ResultTags(`group:"components"`))
}

// AsRoute annotates a constructor of flowhttp.Route for the routes group.
func AsRoute(constructor any) any {
	return fx.Annotate(constructor, fx.ResultTags(`group:"routes"`))
}

// ObservabilityResult exposes the facade and its parts.
type ObservabilityResult struct {
	fx.Out

	O11y       observability.Observability
	Logger     observability.Logger
	Metrics    observability.Metrics
	Prometheus *prometheus.Registry
}

// ProvideObservability builds the zap logger and, when enabled, prometheus metrics.
func ProvideObservability(cfg *config.Config, lc fx.Lifecycle) ObservabilityResult {
	logger := zaplog.New(cfg.LoggerConfig())
	registry := prometheus.NewRegistry()

	var metrics observability.Metrics = noop.NewProvider().Metrics()
	if cfg.Metrics.Enabled {
		metrics = prommetrics.New(registry, prommetrics.WithNamespace(cfg.Metrics.Namespace))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})

	return ObservabilityResult{
		O11y:       observability.New(logger, metrics),
		Logger:     logger,
		Metrics:    metrics,
		Prometheus: registry,
	}
}

// ProvideExporter returns nil when export is disabled.
func ProvideExporter(cfg *config.Config, o11y observability.Observability, lc fx.Lifecycle) (*flowexport.Exporter, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}

	spanExporter, err := flowexport.NewOTLPExporter(context.Background(), cfg.FlowExportConfig())
	if err != nil {
		return nil, err
	}
	exporter, err := flowexport.NewExporter(spanExporter, o11y, cfg.ExportOptions()...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return exporter.Shutdown(ctx)
		},
	})
	return exporter, nil
}

// RegistryParams holds the registry dependencies.
type RegistryParams struct {
	fx.In

	Types      *dispatch.ErrorTypes `optional:"true"`
	Components []dispatch.Component `group:"components"`
	Exporter   *flowexport.Exporter `optional:"true"`
}

// ProvideRegistry validates the declared components. The exporter, when
// present, is registered as the "otlp" component.
func ProvideRegistry(p RegistryParams) (*dispatch.Registry, error) {
	components := p.Components
	if p.Exporter != nil {
		components = append(components, p.Exporter.Component("otlp"))
	}
	return dispatch.NewRegistry(p.Types, components...)
}

// ProvideBus creates the dispatch bus.
func ProvideBus(registry *dispatch.Registry, o11y observability.Observability) *dispatch.Bus {
	return dispatch.NewBus(registry, o11y)
}

// ProvideEngine creates the engine with the bus as its receiver.
func ProvideEngine(cfg *config.Config, o11y observability.Observability, bus *dispatch.Bus) (*flow.Engine, error) {
	return flow.New(o11y, append(cfg.EngineOptions(), flow.WithReceiver(bus))...)
}

// ServerConfig configures ServerModule.
type ServerConfig struct {
	Port            string
	MetricsPath     string
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns port 8080, /metrics and a 30s shutdown.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Port: "8080", MetricsPath: "/metrics", ShutdownTimeout: 30 * time.Second}
}

// ServerParams holds the server dependencies.
type ServerParams struct {
	fx.In

	Config      ServerConfig `optional:"true"`
	Engine      *flow.Engine
	O11y        observability.Observability
	Prometheus  *prometheus.Registry
	Routes      []flowhttp.Route      `group:"routes"`
	Middlewares []flowhttp.Middleware `group:"middlewares"`
}

// ProvideServer creates the server with RequestID and Recovery ahead of any
// grouped middlewares, and the metrics route when MetricsPath is set.
func ProvideServer(p ServerParams) flowhttp.Server {
	cfg := p.Config
	if cfg.Port == "" {
		cfg = DefaultServerConfig()
	}

	routes := p.Routes
	if cfg.MetricsPath != "" {
		routes = append(routes, flowhttp.MetricsRoute(cfg.MetricsPath, p.Prometheus))
	}
	middlewares := append([]flowhttp.Middleware{flowhttp.RequestID, flowhttp.Recovery(p.O11y.Logger())}, p.Middlewares...)

	return flowhttp.New(
		flowhttp.WithPort(cfg.Port),
		flowhttp.WithEngine(p.Engine),
		flowhttp.WithObservability(p.O11y),
		flowhttp.WithMiddlewares(middlewares...),
		flowhttp.WithRoutes(routes...),
	)
}

// LifecycleParams holds what RegisterServerLifecycle needs.
type LifecycleParams struct {
	fx.In

	Server flowhttp.Server
	LC     fx.Lifecycle
	Config ServerConfig `optional:"true"`
}

// RegisterServerLifecycle starts the server on fx start and drains it on stop.
func RegisterServerLifecycle(p LifecycleParams) {
	var shutdown flowhttp.Shutdown

	timeout := p.Config.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			shutdown = p.Server.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return shutdown(stopCtx)
		},
	})
}
