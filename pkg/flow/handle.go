package flow

// State is the lifecycle position of a Handle.
type State int

const (
	StateNotStarted State = iota
	StateOpening
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "not_started"
	}
}

// Handle is returned by Enter and must be passed to Exit exactly once.
// It belongs to the goroutine that called Enter.
type Handle struct {
	state    State
	stack    *stack
	entry    *entry
	root     bool
	promoted bool
}

// State returns the lifecycle state.
func (h *Handle) State() State {
	if h == nil {
		return StateNotStarted
	}
	return h.state
}

// Tracked reports whether the unit was recorded. A flow whose record could not
// be built runs untracked.
func (h *Handle) Tracked() bool {
	return h != nil && h.entry != nil
}

// IsFlow reports whether Enter opened a flow, including a promoted step.
func (h *Handle) IsFlow() bool {
	return h.Tracked() && h.entry.isFlow()
}

// Promoted reports whether a step was opened as a flow.
func (h *Handle) Promoted() bool {
	return h != nil && h.promoted
}

// Root reports whether the flow is the outermost of its call stack.
func (h *Handle) Root() bool {
	return h.IsFlow() && h.root
}

// IDs returns the identifiers of the flow the unit belongs to.
func (h *Handle) IDs() (IDs, bool) {
	if !h.Tracked() {
		return IDs{}, false
	}
	return h.entry.owner.flow.ids(), true
}
