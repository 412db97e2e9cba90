package flowexport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	// ProtocolGRPC exports over gRPC (default port 4317).
	ProtocolGRPC Protocol = "grpc"
	// ProtocolHTTP exports over HTTP/protobuf (default port 4318).
	ProtocolHTTP Protocol = "http"
)

// ParseProtocol normalizes a configured protocol name. Unknown names yield gRPC.
func ParseProtocol(value string) Protocol {
	switch strings.ToLower(value) {
	case "http", "http/protobuf":
		return ProtocolHTTP
	default:
		return ProtocolGRPC
	}
}

// Config holds the exporter settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Endpoint string
	Protocol Protocol
	Headers  map[string]string
	Timeout  time.Duration

	// Insecure disables TLS. It is refused when Environment is production.
	Insecure  bool
	TLSConfig *tls.Config

	// ScopeName and ScopeVersion identify the instrumentation scope of exported spans.
	ScopeName    string
	ScopeVersion string

	// MaxRetries bounds the attempts after the first failed export of a batch.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns a gRPC configuration pointing at a local collector.
func DefaultConfig() *Config {
	return &Config{
		ServiceVersion:  "unknown",
		Environment:     "development",
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Timeout:         10 * time.Second,
		ScopeName:       "github.com/JailtonJunior94/devkit-flow",
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.Insecure {
		env := strings.ToLower(c.Environment)
		if env == "production" || env == "prod" {
			return fmt.Errorf("insecure connections are not allowed in %s environment", c.Environment)
		}
	}
	if c.TLSConfig != nil && c.TLSConfig.MinVersion > 0 && c.TLSConfig.MinVersion < tls.VersionTLS12 {
		return errors.New("minimum TLS version must be 1.2 or higher")
	}
	return nil
}

// Option configures the exporter.
type Option func(*Config)

// WithServiceName sets service.name on exported resources.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets service.version on exported resources.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithEnvironment sets deployment.environment on exported resources.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithEndpoint sets the collector endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithProtocol selects the OTLP transport.
func WithProtocol(p Protocol) Option {
	return func(c *Config) {
		c.Protocol = p
	}
}

// WithInsecure disables TLS.
func WithInsecure(insecure bool) Option {
	return func(c *Config) {
		c.Insecure = insecure
	}
}

// WithTLSConfig sets a custom TLS configuration.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Config) {
		c.TLSConfig = cfg
	}
}

// WithHeaders adds request headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Config) {
		c.Headers = headers
	}
}

// WithRetry configures the bounded export retry.
func WithRetry(maxRetries int, initial, maxInterval time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.InitialInterval = initial
		c.MaxInterval = maxInterval
	}
}

// WithTimeout sets the per-request export timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}
