package dispatch

import (
	"fmt"
	"strings"
)

type declared struct {
	Handler
	errType string
	depth   int
}

// group is the validated form of a Component.
type group struct {
	component  string
	scope      []string
	fallback   bool
	handlers   []*declared
	notMatched map[Lifecycle]*declared
}

func (g *group) inScope(name string) bool {
	if len(g.scope) == 0 {
		return true
	}
	for _, prefix := range g.scope {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// selectHandlers returns the ordinary handlers of g that match, in declaration
// order. At most one FAILURE handler is kept: the one bound to the most
// derived type, with an exact flow name beating the wildcard at equal depth.
func (g *group) selectHandlers(types *ErrorTypes, lc Lifecycle, name string, failed bool, errType string) []*declared {
	var (
		out  []*declared
		best *declared
	)
	for _, h := range g.handlers {
		if h.Lifecycle != lc || (!h.wildcard() && h.Flow != name) {
			continue
		}
		switch h.Outcome {
		case OutcomeSuccess:
			if !failed {
				out = append(out, h)
			}
		case OutcomeFailure:
			if !failed || !types.IsAncestorOrSelf(h.errType, errType) {
				continue
			}
			if best == nil || h.depth > best.depth || (h.depth == best.depth && best.wildcard() && !h.wildcard()) {
				best = h
			}
		default:
			out = append(out, h)
		}
	}
	if best == nil {
		return out
	}

	ordered := make([]*declared, 0, len(out)+1)
	for _, h := range g.handlers {
		if h == best {
			ordered = append(ordered, h)
			continue
		}
		for _, o := range out {
			if o == h {
				ordered = append(ordered, h)
				break
			}
		}
	}
	return ordered
}

// Registry holds the validated handler groups. It is read-only after NewRegistry.
type Registry struct {
	types    *ErrorTypes
	groups   []*group
	fallback *group
}

// NewRegistry validates components against types and freezes types. A nil
// types means only RootErrorType is known.
func NewRegistry(types *ErrorTypes, components ...Component) (*Registry, error) {
	if types == nil {
		types = NewErrorTypes()
	}
	types.freeze()

	r := &Registry{types: types}
	seen := make(map[string]struct{}, len(components))
	for _, c := range components {
		if c.Name == "" {
			return nil, &ConfigError{Rule: "component-name", Message: "component name is required", Err: ErrInvalidComponent}
		}
		if _, dup := seen[c.Name]; dup {
			return nil, &ConfigError{Component: c.Name, Rule: "unique-component", Message: "component declared twice", Err: ErrDuplicateComponent}
		}
		seen[c.Name] = struct{}{}

		g, err := newGroup(types, c)
		if err != nil {
			return nil, err
		}
		if g.fallback {
			if r.fallback != nil {
				return nil, &ConfigError{
					Component: c.Name,
					Rule:      "single-fallback",
					Message:   fmt.Sprintf("%q is already the fallback component", r.fallback.component),
					Err:       ErrMultipleFallbacks,
				}
			}
			r.fallback = g
		}
		r.groups = append(r.groups, g)
	}
	return r, nil
}

func newGroup(types *ErrorTypes, c Component) (*group, error) {
	g := &group{
		component:  c.Name,
		scope:      append([]string(nil), c.Scope...),
		fallback:   c.Fallback,
		notMatched: make(map[Lifecycle]*declared),
	}

	wildcardFailure := make(map[Lifecycle]*declared)
	failureByKey := make(map[string]*declared)

	for i, h := range c.Handlers {
		if h.Method == "" {
			h.Method = fmt.Sprintf("handler[%d]", i)
		}
		h.Bindings = append([]Binding(nil), h.Bindings...)
		if h.Func == nil {
			return nil, &ConfigError{Component: c.Name, Rule: "handler-func", Message: fmt.Sprintf("%s has no function", h.Method), Err: ErrInvalidHandler}
		}
		if h.ErrorType != "" && (h.NotMatched || h.Outcome != OutcomeFailure) {
			return nil, &ConfigError{
				Component: c.Name,
				Rule:      "error-type-on-failure-only",
				Message:   fmt.Sprintf("%s declares error type %q without the FAILURE outcome", h.Method, h.ErrorType),
				Err:       ErrErrorTypeNotAllowed,
			}
		}
		if h.NotMatched && (h.Flow != "" || h.Outcome != OutcomeAny) {
			return nil, &ConfigError{
				Component: c.Name,
				Rule:      "not-matched-unfiltered",
				Message:   fmt.Sprintf("not-matched hook %s declares a flow name or an outcome", h.Method),
				Err:       ErrNotMatchedFilter,
			}
		}

		d := &declared{Handler: h, errType: RootErrorType}
		if h.ErrorType != "" {
			if !types.Has(h.ErrorType) {
				return nil, &ConfigError{
					Component: c.Name,
					Rule:      "declared-error-type",
					Message:   fmt.Sprintf("%s references undeclared error type %q", h.Method, h.ErrorType),
					Err:       ErrUnknownErrorType,
				}
			}
			d.errType = h.ErrorType
		}
		d.depth = types.Depth(d.errType)

		if h.NotMatched {
			if prev, dup := g.notMatched[h.Lifecycle]; dup {
				return nil, &ConfigError{
					Component: c.Name,
					Rule:      "single-not-matched",
					Message:   fmt.Sprintf("%s and %s are both not-matched hooks for %s", prev.Method, h.Method, h.Lifecycle),
					Err:       ErrDuplicateNotMatched,
				}
			}
			g.notMatched[h.Lifecycle] = d
			continue
		}

		if h.Outcome == OutcomeFailure {
			if h.wildcard() {
				if prev, dup := wildcardFailure[h.Lifecycle]; dup {
					return nil, &ConfigError{
						Component: c.Name,
						Rule:      "single-wildcard-failure-handler",
						Message:   fmt.Sprintf("%s and %s are both blank-wildcard FAILURE handlers for %s", prev.Method, h.Method, h.Lifecycle),
						Err:       ErrAmbiguousWildcard,
					}
				}
				wildcardFailure[h.Lifecycle] = d
			}
			key := fmt.Sprintf("%d|%s|%s", h.Lifecycle, h.Flow, d.errType)
			if prev, dup := failureByKey[key]; dup {
				return nil, &ConfigError{
					Component: c.Name,
					Rule:      "unique-failure-error-type",
					Message:   fmt.Sprintf("%s and %s both handle %q failures of %q", prev.Method, h.Method, d.errType, h.Flow),
					Err:       ErrAmbiguousErrorType,
				}
			}
			failureByKey[key] = d
		}
		g.handlers = append(g.handlers, d)
	}
	return g, nil
}

// ErrorTypes returns the frozen error hierarchy.
func (r *Registry) ErrorTypes() *ErrorTypes {
	return r.types
}

// Components lists component names in registration order.
func (r *Registry) Components() []string {
	out := make([]string, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g.component)
	}
	return out
}
