package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

// Match identifies one handler that fired.
type Match struct {
	Component string
	Method    string
}

// Report describes one dispatch.
type Report struct {
	Lifecycle Lifecycle
	Flow      string

	// Matched lists ordinary handlers selected for the flow, including those
	// whose bindings failed.
	Matched []Match

	// NotMatched lists components whose not-matched hook fired.
	NotMatched []string

	// Fallback reports whether the global fallback fired.
	Fallback bool

	// Ambiguity is set when the failure matched sibling error types. The
	// handlers that ran were chosen for Ambiguity.Resolved.
	Ambiguity *AmbiguousError

	HandlerErrors []*HandlerError
	BindingErrors []*BindingError
}

// Err joins the ambiguity and every handler and binding failure, or returns nil.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.HandlerErrors)+len(r.BindingErrors)+1)
	if r.Ambiguity != nil {
		errs = append(errs, r.Ambiguity)
	}
	for _, e := range r.BindingErrors {
		errs = append(errs, e)
	}
	for _, e := range r.HandlerErrors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Config holds bus settings.
type Config struct {
	// OnReport observes every report after dispatch.
	OnReport func(ctx context.Context, report Report)
}

// Option configures the bus.
type Option func(*Config)

// WithReportHook registers a report observer.
func WithReportHook(fn func(ctx context.Context, report Report)) Option {
	return func(c *Config) {
		c.OnReport = fn
	}
}

// Bus routes closed flows to the handlers of a Registry. It implements
// flow.Receiver, so it can be handed to the engine directly.
type Bus struct {
	registry *Registry
	config   *Config
	logger   observability.Logger
	metrics  *busMetrics
}

var _ flow.Receiver = (*Bus)(nil)

// NewBus builds a bus. A nil o11y falls back to the no-op provider.
func NewBus(registry *Registry, o11y observability.Observability, opts ...Option) *Bus {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if o11y == nil {
		o11y = noop.NewProvider()
	}
	b := &Bus{
		registry: registry,
		config:   cfg,
		logger:   o11y.Logger().With(observability.String("component", "dispatch")),
		metrics:  newBusMetrics(o11y.Metrics()),
	}

	components := float64(len(registry.Components()))
	err := o11y.Metrics().Gauge("dispatch_components", "Components registered on the bus", "1",
		func(context.Context) float64 { return components })
	if err != nil {
		b.logger.Warn(context.Background(), "dispatch gauge not registered", observability.Error(err))
	}
	return b
}

// FlowFinished implements flow.Receiver.
func (b *Bus) FlowFinished(ctx context.Context, rec flow.Record) error {
	return b.Dispatch(ctx, rec).Err()
}

// RootFlowFinished implements flow.Receiver.
func (b *Bus) RootFlowFinished(ctx context.Context, batch []flow.Record) error {
	return b.DispatchRoot(ctx, batch).Err()
}

// Dispatch routes one closed flow to FlowFinished handlers.
func (b *Bus) Dispatch(ctx context.Context, rec flow.Record) Report {
	return b.dispatch(ctx, FlowFinished, rec, nil)
}

// DispatchRoot routes a root batch to RootFlowFinished handlers. Matching is
// done on batch[0], the root.
func (b *Bus) DispatchRoot(ctx context.Context, batch []flow.Record) Report {
	if len(batch) == 0 {
		return Report{Lifecycle: RootFlowFinished}
	}
	return b.dispatch(ctx, RootFlowFinished, batch[0], batch)
}

func (b *Bus) dispatch(ctx context.Context, lc Lifecycle, rec flow.Record, batch []flow.Record) Report {
	rep := Report{Lifecycle: lc, Flow: rec.Name()}
	failed := rec.Failed()

	var errType string
	if failed {
		errType, rep.Ambiguity = b.classify(ctx, lc, rec)
	}

	routed := false
	for _, g := range b.registry.groups {
		if !g.inScope(rec.Name()) {
			continue
		}
		selected := g.selectHandlers(b.registry.types, lc, rec.Name(), failed, errType)
		if len(selected) > 0 {
			routed = true
			for _, h := range selected {
				rep.Matched = append(rep.Matched, Match{Component: g.component, Method: h.Method})
				b.invoke(ctx, &rep, g, h, lc, rec, batch, errType)
			}
			continue
		}
		if g.fallback {
			continue
		}
		if hook, ok := g.notMatched[lc]; ok {
			routed = true
			rep.NotMatched = append(rep.NotMatched, g.component)
			b.invoke(ctx, &rep, g, hook, lc, rec, batch, errType)
		}
	}

	if fb := b.registry.fallback; !routed && fb != nil {
		if hook, ok := fb.notMatched[lc]; ok {
			rep.Fallback = true
			b.metrics.fallback.Increment(ctx, observability.String("lifecycle", lc.String()))
			b.invoke(ctx, &rep, fb, hook, lc, rec, batch, errType)
		}
	}

	if b.config.OnReport != nil {
		if panicked, err := safeCall(func() error {
			b.config.OnReport(ctx, rep)
			return nil
		}); err != nil {
			b.logger.Warn(ctx, "dispatch report hook failed", observability.Bool("panic", panicked), observability.Error(err))
		}
	}
	return rep
}

// classify isolates user matchers: a failing matcher degrades to RootErrorType.
// An ambiguous failure is logged and counted, never resolved silently.
func (b *Bus) classify(ctx context.Context, lc Lifecycle, rec flow.Record) (string, *AmbiguousError) {
	errType := RootErrorType
	var classifyErr error
	if _, err := safeCall(func() error {
		errType, classifyErr = b.registry.types.Classify(rec.Failure())
		return nil
	}); err != nil {
		b.logger.Warn(ctx, "error type matcher failed", observability.Error(err))
		return RootErrorType, nil
	}

	var ambiguous *AmbiguousError
	if !errors.As(classifyErr, &ambiguous) {
		return errType, nil
	}
	b.metrics.ambiguous.Increment(ctx, observability.String("lifecycle", lc.String()))
	b.logger.Warn(ctx, "failure matches several error types",
		observability.String("flow", rec.Name()),
		observability.String("candidates", strings.Join(ambiguous.Candidates, ",")),
		observability.String("dispatched_as", ambiguous.Resolved),
	)
	return errType, ambiguous
}

func (b *Bus) invoke(ctx context.Context, rep *Report, g *group, h *declared, lc Lifecycle, rec flow.Record, batch []flow.Record, errType string) {
	labels := []observability.Field{
		observability.String("component", g.component),
		observability.String("lifecycle", lc.String()),
	}

	args, bindErr := bind(g.component, h.Handler, rec)
	if bindErr != nil {
		rep.BindingErrors = append(rep.BindingErrors, bindErr)
		b.metrics.bindingFailures.Increment(ctx, labels...)
		b.logger.Warn(ctx, "handler binding failed",
			observability.String("flow", rec.Name()),
			observability.String("handler", g.component+"."+h.Method),
			observability.Error(bindErr),
		)
		return
	}

	inv := Invocation{Lifecycle: lc, Record: rec, Batch: slices.Clone(batch), ErrorType: errType, Args: args}
	b.metrics.invocations.Increment(ctx, labels...)
	panicked, err := safeCall(func() error {
		return h.Func(ctx, inv)
	})
	if err == nil {
		return
	}

	herr := &HandlerError{Component: g.component, Method: h.Method, Panicked: panicked, Err: err}
	rep.HandlerErrors = append(rep.HandlerErrors, herr)
	b.metrics.handlerFailures.Increment(ctx, labels...)
	b.logger.Warn(ctx, "handler failed",
		observability.String("flow", rec.Name()),
		observability.String("handler", g.component+"."+h.Method),
		observability.Bool("panic", panicked),
		observability.Error(err),
	)
}

// safeCall runs fn, converting a panic into an error.
func safeCall(fn func() error) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return false, fn()
}

type busMetrics struct {
	invocations     observability.Counter
	handlerFailures observability.Counter
	bindingFailures observability.Counter
	fallback        observability.Counter
	ambiguous       observability.Counter
}

func newBusMetrics(m observability.Metrics) *busMetrics {
	return &busMetrics{
		invocations:     m.Counter("dispatch_invocations_total", "Handler invocations", "1"),
		handlerFailures: m.Counter("dispatch_handler_failures_total", "Handlers that returned an error or panicked", "1"),
		bindingFailures: m.Counter("dispatch_binding_failures_total", "Handlers skipped because a required binding was missing", "1"),
		fallback:        m.Counter("dispatch_fallback_total", "Global fallback invocations", "1"),
		ambiguous:       m.Counter("dispatch_ambiguous_total", "Failures matching several error types of equal depth", "1"),
	}
}
