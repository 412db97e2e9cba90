package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// RootErrorType is the implicit ancestor of every declared error type. A
// FAILURE handler without an ErrorType is bound to it.
const RootErrorType = "error"

// Matcher reports whether err belongs to a declared error type.
type Matcher func(err error) bool

// TypedError lets an error name its declared type directly.
type TypedError interface {
	error
	ErrorType() string
}

type errorType struct {
	name      string
	parent    string
	match     Matcher
	ancestors map[string]struct{}
	depth     int
}

// ErrorTypes is the declared error hierarchy used for FAILURE specificity.
// Types are declared at wiring time; the set is frozen when a Registry is
// built from it.
type ErrorTypes struct {
	mu     sync.RWMutex
	types  map[string]*errorType
	order  []string
	frozen bool
}

// NewErrorTypes returns a hierarchy holding only RootErrorType.
func NewErrorTypes() *ErrorTypes {
	root := &errorType{
		name:      RootErrorType,
		match:     func(err error) bool { return err != nil },
		ancestors: map[string]struct{}{RootErrorType: {}},
	}
	return &ErrorTypes{types: map[string]*errorType{RootErrorType: root}}
}

// Declare adds name as a child of parent. An empty parent means RootErrorType.
// Parents must be declared before their children.
func (t *ErrorTypes) Declare(name, parent string, match Matcher) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.frozen:
		return fmt.Errorf("declare %q: %w", name, ErrErrorTypesFrozen)
	case name == "":
		return fmt.Errorf("declare: %w: empty name", ErrInvalidErrorType)
	case match == nil:
		return fmt.Errorf("declare %q: %w: nil matcher", name, ErrInvalidErrorType)
	}
	if _, exists := t.types[name]; exists {
		return fmt.Errorf("declare %q: %w: already declared", name, ErrInvalidErrorType)
	}
	if parent == "" {
		parent = RootErrorType
	}
	p, ok := t.types[parent]
	if !ok {
		return fmt.Errorf("declare %q: %w: parent %q", name, ErrUnknownErrorType, parent)
	}

	ancestors := make(map[string]struct{}, len(p.ancestors)+1)
	for a := range p.ancestors {
		ancestors[a] = struct{}{}
	}
	ancestors[name] = struct{}{}

	t.types[name] = &errorType{name: name, parent: parent, match: match, ancestors: ancestors, depth: p.depth + 1}
	t.order = append(t.order, name)
	return nil
}

// DeclareSentinel declares a type matching errors.Is(err, target).
func (t *ErrorTypes) DeclareSentinel(name, parent string, target error) error {
	return t.Declare(name, parent, func(err error) bool { return errors.Is(err, target) })
}

// MatchAs returns a Matcher accepting errors with an E in their chain.
func MatchAs[E error]() Matcher {
	return func(err error) bool {
		var target E
		return errors.As(err, &target)
	}
}

func (t *ErrorTypes) freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Has reports whether name is declared.
func (t *ErrorTypes) Has(name string) bool {
	_, ok := t.lookup(name)
	return ok
}

// Depth returns the distance of name from RootErrorType, or -1 if unknown.
func (t *ErrorTypes) Depth(name string) int {
	et, ok := t.lookup(name)
	if !ok {
		return -1
	}
	return et.depth
}

// IsAncestorOrSelf reports whether ancestor is name or one of its ancestors.
func (t *ErrorTypes) IsAncestorOrSelf(ancestor, name string) bool {
	et, ok := t.lookup(name)
	if !ok {
		return false
	}
	_, ok = et.ancestors[ancestor]
	return ok
}

// Classify returns the most derived declared type matching err. Errors
// implementing TypedError with a declared name classify directly. A nil err
// classifies as "".
//
// When several types match at the deepest level, err is ambiguous: Classify
// returns the nearest type they all descend from, together with an
// *AmbiguousError listing the candidates.
func (t *ErrorTypes) Classify(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var typed TypedError
	if errors.As(err, &typed) {
		if _, ok := t.types[typed.ErrorType()]; ok {
			return typed.ErrorType(), nil
		}
	}

	best := []*errorType{t.types[RootErrorType]}
	for _, name := range t.order {
		et := t.types[name]
		switch {
		case et.depth < best[0].depth:
			continue
		case !et.match(err):
			continue
		case et.depth > best[0].depth:
			best = []*errorType{et}
		default:
			best = append(best, et)
		}
	}
	if len(best) == 1 {
		return best[0].name, nil
	}

	candidates := make([]string, 0, len(best))
	for _, et := range best {
		candidates = append(candidates, et.name)
	}
	sort.Strings(candidates)
	common := t.commonAncestor(best)
	return common, &AmbiguousError{Candidates: candidates, Resolved: common}
}

// commonAncestor walks equal-depth types up until they meet. Callers hold mu.
func (t *ErrorTypes) commonAncestor(types []*errorType) string {
	current := append([]*errorType(nil), types...)
	for {
		same := true
		for _, et := range current[1:] {
			if et.name != current[0].name {
				same = false
				break
			}
		}
		if same {
			return current[0].name
		}
		for i, et := range current {
			current[i] = t.types[et.parent]
		}
	}
}

func (t *ErrorTypes) lookup(name string) (*errorType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	et, ok := t.types[name]
	return et, ok
}
