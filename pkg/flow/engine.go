package flow

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

// Engine opens and closes flows and steps, freezes flow records and hands
// them to the configured receivers.
type Engine struct {
	config    *Config
	logger    observability.Logger
	metrics   *engineMetrics
	serviceID string
	resource  Attributes
}

// New builds an engine. A nil o11y falls back to the no-op provider.
func New(o11y observability.Observability, opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o11y == nil {
		o11y = noop.NewProvider()
	}

	resource := NewAttributes(cfg.Resource...)
	serviceID, err := resolveServiceID(cfg.ServiceID, resource)
	if err != nil {
		return nil, &ConfigError{Field: "ServiceID", Message: "service id must be set once", Err: err}
	}
	if _, ok := resource.Get(ServiceIDKey); !ok {
		resource = resource.With(observability.String(ServiceIDKey, serviceID))
	}

	return &Engine{
		config:    cfg,
		logger:    o11y.Logger().With(observability.String("component", "flow")),
		metrics:   newEngineMetrics(o11y.Metrics()),
		serviceID: serviceID,
		resource:  resource,
	}, nil
}

// ServiceID returns the resolved service id.
func (e *Engine) ServiceID() string {
	return e.serviceID
}

// Enter opens a unit of work. A flow is opened when opts.Type is TypeFlow or
// when no flow is open yet; otherwise a step is pushed. The returned context
// carries the stack and must be used by the body. Exit must always follow,
// usually deferred.
func (e *Engine) Enter(ctx context.Context, opts Options) (context.Context, *Handle) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e == nil {
		return ctx, nil
	}

	st := stackFrom(ctx)
	if st == nil {
		st = &stack{}
		ctx = withStack(ctx, st)
	}
	h := &Handle{state: StateOpening, stack: st}
	parent := st.currentFlow()

	if opts.Type == TypeStep && parent != nil {
		ent := &entry{
			step:  newOpenStep(opts.Name, e.config.Clock.Now(), e.config.MaxEventAttributes, opts.Attributes...),
			owner: parent,
		}
		st.push(ent)
		h.entry = ent
		h.state = StateRunning
		e.metrics.opened.Increment(ctx, observability.String("type", TypeStep.String()))
		return ctx, h
	}

	h.promoted = opts.Type == TypeStep
	h.root = parent == nil

	var ent *entry
	res := isolate("open", func() error {
		var err error
		ent, err = e.openFlow(ctx, st, parent, opts, h.promoted)
		return err
	})
	h.state = StateRunning
	if !e.discard(ctx, res) {
		return ctx, h
	}

	st.push(ent)
	h.entry = ent
	e.metrics.opened.Increment(ctx, observability.String("type", TypeFlow.String()))
	e.metrics.open.Add(ctx, 1)
	if h.promoted {
		e.metrics.promoted.Increment(ctx)
	}

	if len(e.config.OnFlowStarted) > 0 {
		snapshot := ent.flow.snapshot()
		for _, hook := range e.config.OnFlowStarted {
			e.discard(ctx, isolate("flow_started", func() error {
				hook(ctx, snapshot)
				return nil
			}))
		}
	}
	return ctx, h
}

func (e *Engine) openFlow(ctx context.Context, st *stack, parent *entry, opts Options, promoted bool) (*entry, error) {
	start := e.config.Clock.Now()
	data := RecordData{
		Name:      opts.Name,
		Kind:      ResolveKind(opts.MethodKind, opts.ClassKind),
		StartTime: start,
		ServiceID: e.serviceID,
		Synthetic: opts.Synthetic,
		Promoted:  promoted,
		Root:      parent == nil,
	}

	var batch *rootBatch
	switch {
	case parent != nil:
		ids := parent.flow.ids()
		data.IDs = IDs{Trace: ids.Trace, Parent: ids.Span}
		data.CorrelationID = parent.flow.correlationID()
		batch = parent.batch
	case st.remote != nil && st.remote.TraceID.IsValid():
		data.IDs = IDs{Trace: st.remote.TraceID, Parent: st.remote.SpanID}
		data.CorrelationID = st.remote.CorrelationID
		batch = &rootBatch{}
	default:
		data.IDs = IDs{Trace: e.config.Generator.TraceID()}
		batch = &rootBatch{}
	}
	data.IDs.Span = e.config.Generator.SpanID()

	e.config.Builder.apply(ctx, BuildInput{
		Options:   opts,
		IDs:       data.IDs,
		ServiceID: e.serviceID,
		Resource:  e.resource,
		Start:     start,
		Root:      data.Root,
	}, &data)

	rec, err := newOpenRecord(data, e.config.Clock)
	if err != nil {
		return nil, fmt.Errorf("open flow %q: %w", opts.Name, err)
	}
	ent := &entry{flow: rec, batch: batch, slot: batch.reserve()}
	ent.owner = ent
	return ent, nil
}

// Exit closes the unit opened by Enter. It is a no-op for a nil or already
// closed handle. It never fails: telemetry problems are logged and dropped.
func (e *Engine) Exit(ctx context.Context, h *Handle, outcome Outcome) {
	if e == nil || h == nil || h.state != StateRunning {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.state = StateClosing
	defer func() { h.state = StateClosed }()

	switch {
	case h.entry == nil:
		return
	case h.entry.isFlow():
		e.closeFlow(ctx, h, outcome)
	default:
		e.closeStep(ctx, h, outcome)
	}
}

func (e *Engine) closeStep(ctx context.Context, h *Handle, outcome Outcome) {
	ev := h.entry.step.fold(e.config.Clock.Now(), outcome.failure())
	h.entry.owner.flow.addEvent(ev)
	e.pop(ctx, h, ev.Name)
}

func (e *Engine) closeFlow(ctx context.Context, h *Handle, outcome Outcome) {
	ent := h.entry
	failure := outcome.failure()
	rec := ent.flow.freeze(e.config.Clock.Now(), failure)

	if failure != nil {
		for _, hook := range e.config.OnError {
			e.discard(ctx, isolate("error", func() error {
				hook(ctx, rec, failure)
				return nil
			}))
		}
	} else {
		for _, hook := range e.config.OnSuccess {
			e.discard(ctx, isolate("success", func() error {
				hook(ctx, rec, outcome.Result)
				return nil
			}))
		}
	}
	for _, hook := range e.config.OnFlowFinishing {
		e.discard(ctx, isolate("flow_finishing", func() error {
			hook(ctx, rec)
			return nil
		}))
	}

	ent.batch.fill(ent.slot, rec)
	for _, r := range e.config.Receivers {
		e.discard(ctx, isolate("flow_finished", func() error {
			return r.FlowFinished(ctx, rec)
		}))
	}

	result := "success"
	if failure != nil {
		result = "failure"
	}
	e.metrics.open.Add(ctx, -1)
	e.metrics.duration.Record(ctx, rec.Duration().Seconds(), observability.String("outcome", result))

	e.pop(ctx, h, rec.Name())

	if h.root {
		batch := ent.batch.close()
		for _, r := range e.config.Receivers {
			e.discard(ctx, isolate("root_flow_finished", func() error {
				return r.RootFlowFinished(ctx, batch)
			}))
		}
	}
}

func (e *Engine) pop(ctx context.Context, h *Handle, name string) {
	if h.stack.pop(h.entry) {
		return
	}
	e.metrics.resets.Increment(ctx)
	e.logger.Warn(ctx, "flow stack out of order, open units discarded",
		observability.String("unit", name),
	)
}

// WithFlow runs body inside a flow. The body's error is returned unchanged and
// a panic is re-raised after the flow is closed.
func (e *Engine) WithFlow(ctx context.Context, opts Options, body func(ctx context.Context) error) error {
	opts.Type = TypeFlow
	_, err := Run(ctx, e, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}

// WithStep runs body inside a step, promoted to a flow when none is open.
func (e *Engine) WithStep(ctx context.Context, opts Options, body func(ctx context.Context) error) error {
	opts.Type = TypeStep
	_, err := Run(ctx, e, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}

// Run runs body as the unit described by opts and returns its result unchanged.
func Run[T any](ctx context.Context, e *Engine, opts Options, body func(ctx context.Context) (T, error)) (result T, err error) {
	ctx, h := e.Enter(ctx, opts)
	defer func() {
		if r := recover(); r != nil {
			e.Exit(ctx, h, Outcome{Panic: r})
			panic(r)
		}
		e.Exit(ctx, h, Outcome{Err: err, Result: result})
	}()
	return body(ctx)
}
