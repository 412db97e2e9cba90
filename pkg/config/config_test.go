package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/flowexport"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", map[string]any{"service.id": "orders"})
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.Service.ID)
	assert.Equal(t, "development", cfg.Service.Environment)
	assert.Equal(t, "uuidv7", cfg.IDs.Strategy)
	assert.Equal(t, 128, cfg.Engine.MaxEventAttributes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Export.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Export.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Export.InitialInterval)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "flow.yaml", `
service:
  id: orders
  name: orders-api
  version: 1.4.0
  environment: staging
  resource:
    region: sa-east-1
ids:
  strategy: ulid
log:
  level: debug
  format: text
export:
  enabled: true
  endpoint: collector:4318
  protocol: http
  timeout: 3s
  headers:
    x-tenant: acme
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "orders-api", cfg.Service.Name)
	assert.Equal(t, "staging", cfg.Service.Environment)
	assert.Equal(t, map[string]string{"region": "sa-east-1"}, cfg.Service.Resource)
	assert.Equal(t, "ulid", cfg.IDs.Strategy)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "collector:4318", cfg.Export.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Export.Timeout)
	assert.Equal(t, "acme", cfg.Export.Headers["x-tenant"])
	assert.Equal(t, 3, cfg.Export.MaxRetries)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "flow.json", `{"service": {"id": "billing"}, "engine": {"max_event_attributes": 16}}`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "billing", cfg.Service.ID)
	assert.Equal(t, 16, cfg.Engine.MaxEventAttributes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "flow.yaml", "service:\n  id: orders\nexport:\n  max_retries: 1\n")
	t.Setenv("FLOW_SERVICE_ID", "orders-worker")
	t.Setenv("FLOW_EXPORT_MAX_RETRIES", "5")
	t.Setenv("FLOW_LOG_LEVEL", "warn")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "orders-worker", cfg.Service.ID)
	assert.Equal(t, 5, cfg.Export.MaxRetries)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("FLOW_SERVICE_ID", "from-env")

	cfg, err := Load("", map[string]any{"service.id": "from-override"})
	require.NoError(t, err)
	assert.Equal(t, "from-override", cfg.Service.ID)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(writeFile(t, "flow.toml", "x = 1"), nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Service.ID = "orders"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid"},
		{name: "missing service id", mutate: func(c *Config) { c.Service.ID = "" }, field: "Config.Service.ID"},
		{name: "unknown environment", mutate: func(c *Config) { c.Service.Environment = "qa" }, field: "Config.Service.Environment"},
		{name: "unknown id strategy", mutate: func(c *Config) { c.IDs.Strategy = "snowflake" }, field: "Config.IDs.Strategy"},
		{name: "zero attribute limit", mutate: func(c *Config) { c.Engine.MaxEventAttributes = 0 }, field: "Config.Engine.MaxEventAttributes"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, field: "Config.Log.Level"},
		{name: "export without endpoint", mutate: func(c *Config) {
			c.Export.Enabled = true
			c.Export.Endpoint = ""
		}, field: "Config.Export.Endpoint"},
		{name: "negative retries", mutate: func(c *Config) { c.Export.MaxRetries = -1 }, field: "Config.Export.MaxRetries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var details ValidationErrors
			require.True(t, errors.As(err, &details), "got %v", err)
			assert.True(t, details.Has(tt.field), "got %v", details)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfig_EngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.ID = "orders"
	cfg.Service.Resource = map[string]string{"zone": "b", "region": "sa-east-1"}
	cfg.Engine.MaxEventAttributes = 8

	engineCfg := flow.DefaultConfig()
	for _, opt := range cfg.EngineOptions() {
		opt(engineCfg)
	}

	assert.Equal(t, "orders", engineCfg.ServiceID)
	assert.Equal(t, 8, engineCfg.MaxEventAttributes)
	require.Len(t, engineCfg.Resource, 2)
	assert.Equal(t, "region", engineCfg.Resource[0].Key)
	assert.Equal(t, "zone", engineCfg.Resource[1].Key)
	assert.NoError(t, engineCfg.Validate())
}

func TestConfig_LoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.ID = "orders"
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"

	logCfg := cfg.LoggerConfig()
	assert.Equal(t, observability.LogLevelDebug, logCfg.Level)
	assert.Equal(t, observability.LogFormatText, logCfg.Format)
	assert.Equal(t, "orders", logCfg.ServiceName)
	assert.NotNil(t, logCfg.Extractor)
}

func TestConfig_FlowExportConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.ID = "orders"
	cfg.Service.Name = "orders-api"
	cfg.Service.Environment = "production"
	cfg.Export.Protocol = "http"
	cfg.Export.Timeout = time.Second
	cfg.Export.Headers = map[string]string{"x-tenant": "acme"}

	exportCfg := cfg.FlowExportConfig()
	assert.Equal(t, "orders-api", exportCfg.ServiceName)
	assert.Equal(t, "production", exportCfg.Environment)
	assert.Equal(t, flowexport.ProtocolHTTP, exportCfg.Protocol)
	assert.Equal(t, time.Second, exportCfg.Timeout)
	assert.Equal(t, "acme", exportCfg.Headers["x-tenant"])
	assert.NoError(t, exportCfg.Validate())

	cfg.Export.Insecure = true
	assert.Error(t, cfg.FlowExportConfig().Validate())
}
