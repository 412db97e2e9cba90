package observability

import "context"

// Metrics creates the instruments the engine, the bus and the exporter report
// through. Asking twice for the same name returns the same instrument.
type Metrics interface {
	Counter(name, description, unit string) Counter
	Histogram(name, description, unit string) Histogram
	UpDownCounter(name, description, unit string) UpDownCounter

	// Gauge registers a value read from callback whenever metrics are
	// collected. Registering a name twice is an error for backends that keep
	// a registry.
	Gauge(name, description, unit string, callback GaugeCallback) error
}

// Counter only goes up. Field keys become label names, so every call for one
// instrument must use the same keys.
type Counter interface {
	Add(ctx context.Context, value int64, fields ...Field)
	Increment(ctx context.Context, fields ...Field)
}

// Histogram records durations and sizes.
type Histogram interface {
	Record(ctx context.Context, value float64, fields ...Field)
}

// UpDownCounter tracks a level, such as the number of open flows.
type UpDownCounter interface {
	Add(ctx context.Context, value int64, fields ...Field)
}

// GaugeCallback reports the current value of a gauge.
type GaugeCallback func(ctx context.Context) float64
