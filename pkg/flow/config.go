package flow

import (
	"context"

	"github.com/zoobzio/clockz"

	"github.com/JailtonJunior94/devkit-flow/pkg/flowid"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// Receiver consumes finished records. The dispatch bus is the usual receiver.
// Returned errors are logged by the engine and never reach application code.
type Receiver interface {
	FlowFinished(ctx context.Context, rec Record) error
	RootFlowFinished(ctx context.Context, batch []Record) error
}

// Config holds the engine settings.
type Config struct {
	// ServiceID is stamped on every record. It may come from Resource instead.
	ServiceID string

	// Resource attributes shared by every record of the process.
	Resource []observability.Field

	// Generator produces trace and span ids.
	Generator flowid.Generator

	// Clock is read for start and end instants.
	Clock clockz.Clock

	// Builder overrides parts of record construction.
	Builder RecordBuilder

	// Receivers are notified in order after every flow and every root batch.
	Receivers []Receiver

	// MaxEventAttributes caps the attributes of a folded step. Extra keys are counted as dropped.
	MaxEventAttributes int

	// OnFlowStarted runs after a flow is pushed.
	OnFlowStarted []func(ctx context.Context, rec Record)

	// OnSuccess runs when a flow body returned without error.
	OnSuccess []func(ctx context.Context, rec Record, result any)

	// OnError runs when a flow body returned an error or panicked.
	OnError []func(ctx context.Context, rec Record, err error)

	// OnFlowFinishing runs after the outcome hooks and before dispatch.
	OnFlowFinishing []func(ctx context.Context, rec Record)
}

// DefaultConfig returns a configuration with a UUIDv7 generator and the real clock.
func DefaultConfig() *Config {
	return &Config{
		Generator:          flowid.NewV7Generator(),
		Clock:              clockz.RealClock,
		MaxEventAttributes: 128,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := resolveServiceID(c.ServiceID, NewAttributes(c.Resource...)); err != nil {
		return &ConfigError{Field: "ServiceID", Message: "service id must be set once", Err: err}
	}
	if c.Generator == nil {
		return &ConfigError{Field: "Generator", Message: "generator is required", Err: ErrInvalidConfig}
	}
	if c.Clock == nil {
		return &ConfigError{Field: "Clock", Message: "clock is required", Err: ErrInvalidConfig}
	}
	if c.MaxEventAttributes <= 0 {
		return &ConfigError{Field: "MaxEventAttributes", Message: "must be positive", Err: ErrInvalidConfig}
	}
	for _, r := range c.Receivers {
		if r == nil {
			return &ConfigError{Field: "Receivers", Message: "receiver is nil", Err: ErrInvalidConfig}
		}
	}
	return nil
}

// Option configures the engine.
type Option func(*Config)

// WithServiceID sets the service id.
func WithServiceID(id string) Option {
	return func(c *Config) {
		c.ServiceID = id
	}
}

// WithResource appends resource attributes.
func WithResource(fields ...observability.Field) Option {
	return func(c *Config) {
		c.Resource = append(c.Resource, fields...)
	}
}

// WithGenerator replaces the id generator.
func WithGenerator(g flowid.Generator) Option {
	return func(c *Config) {
		c.Generator = g
	}
}

// WithClock replaces the clock, typically with a clockz fake in tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithBuilder overrides record construction.
func WithBuilder(b RecordBuilder) Option {
	return func(c *Config) {
		c.Builder = b
	}
}

// WithReceiver appends a receiver.
func WithReceiver(r Receiver) Option {
	return func(c *Config) {
		c.Receivers = append(c.Receivers, r)
	}
}

// WithMaxEventAttributes caps step attributes.
func WithMaxEventAttributes(n int) Option {
	return func(c *Config) {
		c.MaxEventAttributes = n
	}
}

// WithOnFlowStarted registers a hook run when a flow opens.
func WithOnFlowStarted(fn func(ctx context.Context, rec Record)) Option {
	return func(c *Config) {
		c.OnFlowStarted = append(c.OnFlowStarted, fn)
	}
}

// WithOnSuccess registers a hook run when a flow succeeds.
func WithOnSuccess(fn func(ctx context.Context, rec Record, result any)) Option {
	return func(c *Config) {
		c.OnSuccess = append(c.OnSuccess, fn)
	}
}

// WithOnError registers a hook run when a flow fails.
func WithOnError(fn func(ctx context.Context, rec Record, err error)) Option {
	return func(c *Config) {
		c.OnError = append(c.OnError, fn)
	}
}

// WithOnFlowFinishing registers a hook run right before dispatch.
func WithOnFlowFinishing(fn func(ctx context.Context, rec Record)) Option {
	return func(c *Config) {
		c.OnFlowFinishing = append(c.OnFlowFinishing, fn)
	}
}
