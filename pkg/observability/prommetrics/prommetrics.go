// Package prommetrics implements observability.Metrics with Prometheus collectors.
//
// Instruments are created lazily: the label names of a vector are taken from the
// field keys of the first sample recorded on it. Later samples with a different
// key set are dropped and counted in DroppedSamples.
package prommetrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements observability.Metrics.
type Metrics struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
	upDowns    map[string]*upDown

	dropped atomic.Int64
}

// Option configures Metrics.
type Option func(*Metrics)

// WithNamespace prefixes every metric name.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithBuckets sets histogram buckets, in seconds for duration histograms.
func WithBuckets(buckets []float64) Option {
	return func(m *Metrics) {
		m.buckets = buckets
	}
}

// New creates a Prometheus backed recorder. A nil registerer means prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer, opts ...Option) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
		upDowns:    make(map[string]*upDown),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DroppedSamples returns how many samples could not be recorded.
func (m *Metrics) DroppedSamples() int64 {
	return m.dropped.Load()
}

// Counter returns or creates a counter.
func (m *Metrics) Counter(name, description, unit string) observability.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &counter{lazyVec: lazyVec{metrics: m, name: name, help: description}}
	m.counters[name] = c
	return c
}

// Histogram returns or creates a histogram.
func (m *Metrics) Histogram(name, description, unit string) observability.Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[name]; ok {
		return h
	}
	h := &histogram{lazyVec: lazyVec{metrics: m, name: name, help: description}}
	m.histograms[name] = h
	return h
}

// UpDownCounter returns or creates a gauge that is moved by deltas.
func (m *Metrics) UpDownCounter(name, description, unit string) observability.UpDownCounter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.upDowns[name]; ok {
		return u
	}
	u := &upDown{lazyVec: lazyVec{metrics: m, name: name, help: description}}
	m.upDowns[name] = u
	return u
}

// Gauge registers a gauge whose value is read from callback at scrape time.
func (m *Metrics) Gauge(name, description, unit string, callback observability.GaugeCallback) error {
	if callback == nil {
		return errors.New("gauge callback cannot be nil")
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      helpOrName(description, name),
	}, func() float64 {
		return callback(context.Background())
	})
	if err := m.registerer.Register(gauge); err != nil {
		return fmt.Errorf("register gauge %s: %w", name, err)
	}
	return nil
}

// lazyVec resolves label names on first use and registers the vector once.
type lazyVec struct {
	metrics *Metrics
	name    string
	help    string

	once   sync.Once
	labels []string
	vec    prometheus.Collector
	err    error
}

func (v *lazyVec) init(fields []observability.Field, build func(labels []string) prometheus.Collector) {
	v.once.Do(func() {
		labels := make([]string, 0, len(fields))
		for _, f := range fields {
			labels = append(labels, f.Key)
		}
		sort.Strings(labels)
		v.labels = labels

		collector := build(labels)
		if err := v.metrics.registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				collector = already.ExistingCollector
			} else {
				v.err = err
			}
		}
		v.vec = collector
	})
}

func (v *lazyVec) labelValues(fields []observability.Field) (prometheus.Labels, bool) {
	if v.err != nil || len(fields) != len(v.labels) {
		v.metrics.dropped.Add(1)
		return nil, false
	}
	values := make(prometheus.Labels, len(fields))
	for _, f := range fields {
		values[f.Key] = fmt.Sprint(f.Value)
	}
	return values, true
}

type counter struct {
	lazyVec
}

func (c *counter) Add(ctx context.Context, value int64, fields ...observability.Field) {
	c.init(fields, func(labels []string) prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.metrics.namespace,
			Name:      c.name,
			Help:      helpOrName(c.help, c.name),
		}, labels)
	})
	labels, ok := c.labelValues(fields)
	if !ok {
		return
	}
	vec, ok := c.vec.(*prometheus.CounterVec)
	if !ok {
		c.metrics.dropped.Add(1)
		return
	}
	metric, err := vec.GetMetricWith(labels)
	if err != nil {
		c.metrics.dropped.Add(1)
		return
	}
	metric.Add(float64(value))
}

func (c *counter) Increment(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

type histogram struct {
	lazyVec
}

func (h *histogram) Record(ctx context.Context, value float64, fields ...observability.Field) {
	h.init(fields, func(labels []string) prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: h.metrics.namespace,
			Name:      h.name,
			Help:      helpOrName(h.help, h.name),
			Buckets:   h.metrics.buckets,
		}, labels)
	})
	labels, ok := h.labelValues(fields)
	if !ok {
		return
	}
	vec, ok := h.vec.(*prometheus.HistogramVec)
	if !ok {
		h.metrics.dropped.Add(1)
		return
	}
	metric, err := vec.GetMetricWith(labels)
	if err != nil {
		h.metrics.dropped.Add(1)
		return
	}
	metric.Observe(value)
}

type upDown struct {
	lazyVec
}

func (u *upDown) Add(ctx context.Context, value int64, fields ...observability.Field) {
	u.init(fields, func(labels []string) prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: u.metrics.namespace,
			Name:      u.name,
			Help:      helpOrName(u.help, u.name),
		}, labels)
	})
	labels, ok := u.labelValues(fields)
	if !ok {
		return
	}
	vec, ok := u.vec.(*prometheus.GaugeVec)
	if !ok {
		u.metrics.dropped.Add(1)
		return
	}
	metric, err := vec.GetMetricWith(labels)
	if err != nil {
		u.metrics.dropped.Add(1)
		return
	}
	metric.Add(float64(value))
}

func helpOrName(help, name string) string {
	if help == "" {
		return name
	}
	return help
}
