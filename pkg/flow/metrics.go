package flow

import "github.com/JailtonJunior94/devkit-flow/pkg/observability"

type engineMetrics struct {
	opened   observability.Counter
	promoted observability.Counter
	resets   observability.Counter
	failures observability.Counter
	open     observability.UpDownCounter
	duration observability.Histogram
}

func newEngineMetrics(m observability.Metrics) *engineMetrics {
	return &engineMetrics{
		opened:   m.Counter("flow_opened_total", "Units of work opened, by type", "1"),
		promoted: m.Counter("flow_promoted_total", "Steps promoted to flows because no flow was open", "1"),
		resets:   m.Counter("flow_stack_resets_total", "Stacks cleared after an out of order exit", "1"),
		failures: m.Counter("flow_telemetry_failures_total", "Isolated hook, builder and receiver failures", "1"),
		open:     m.UpDownCounter("flow_open", "Flows currently open", "1"),
		duration: m.Histogram("flow_duration_seconds", "Flow duration", "s"),
	}
}
