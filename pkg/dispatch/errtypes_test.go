package dispatch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/devkit-flow/pkg/dispatch"
)

var (
	errNotFound  = errors.New("not found")
	errTimeout   = errors.New("timeout")
	errDeadlock  = errors.New("deadlock")
	errPoisoned  = errors.New("poisoned message")
	errUntracked = errors.New("untracked")
)

type validationError struct {
	Field string
}

func (e *validationError) Error() string {
	return "invalid " + e.Field
}

type quotaError struct{}

func (quotaError) Error() string { return "quota exceeded" }
func (quotaError) ErrorType() string { return "quota" }

// newTypes declares:
//
//	error
//	├── storage
//	│   ├── not_found
//	│   └── timeout
//	│       └── deadlock
//	├── validation
//	└── quota
func newTypes(t *testing.T) *dispatch.ErrorTypes {
	t.Helper()
	types := dispatch.NewErrorTypes()
	require.NoError(t, types.Declare("storage", "", func(err error) bool {
		return errors.Is(err, errNotFound) || errors.Is(err, errTimeout) || errors.Is(err, errDeadlock)
	}))
	require.NoError(t, types.DeclareSentinel("not_found", "storage", errNotFound))
	require.NoError(t, types.Declare("timeout", "storage", func(err error) bool {
		return errors.Is(err, errTimeout) || errors.Is(err, errDeadlock)
	}))
	require.NoError(t, types.DeclareSentinel("deadlock", "timeout", errDeadlock))
	require.NoError(t, types.Declare("validation", "", dispatch.MatchAs[*validationError]()))
	require.NoError(t, types.Declare("quota", dispatch.RootErrorType, func(error) bool { return false }))
	return types
}

func TestErrorTypes_Classify(t *testing.T) {
	types := newTypes(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "undeclared", err: errUntracked, want: dispatch.RootErrorType},
		{name: "sentinel", err: errNotFound, want: "not_found"},
		{name: "wrapped sentinel", err: errors.Join(errors.New("query"), errNotFound), want: "not_found"},
		{name: "most derived wins", err: errDeadlock, want: "deadlock"},
		{name: "middle of chain", err: errTimeout, want: "timeout"},
		{name: "errors.As matcher", err: &validationError{Field: "email"}, want: "validation"},
		{name: "typed error names itself", err: quotaError{}, want: "quota"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.Classify(tt.err)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorTypes_ClassifySiblingsIsAmbiguous(t *testing.T) {
	types := newTypes(t)

	tests := []struct {
		name       string
		err        error
		want       string
		candidates []string
	}{
		{
			name:       "siblings under storage",
			err:        errors.Join(errTimeout, errNotFound),
			want:       "storage",
			candidates: []string{"not_found", "timeout"},
		},
		{
			name:       "deeper match wins over a shallower one",
			err:        errors.Join(errNotFound, &validationError{Field: "email"}),
			want:       "not_found",
			candidates: nil,
		},
		{
			name:       "undeclared errors add no candidate",
			err:        errors.Join(&validationError{Field: "email"}, errors.New("x")),
			want:       "validation",
			candidates: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.Classify(tt.err)
			assert.Equal(t, tt.want, got)
			if tt.candidates == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, dispatch.ErrAmbiguousMatch)
			var ambiguous *dispatch.AmbiguousError
			require.ErrorAs(t, err, &ambiguous)
			assert.Equal(t, tt.candidates, ambiguous.Candidates)
			assert.Equal(t, tt.want, ambiguous.Resolved)
		})
	}
}

func TestErrorTypes_ClassifyIgnoresDeclarationOrder(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	forward := dispatch.NewErrorTypes()
	require.NoError(t, forward.DeclareSentinel("timeout", "", errA))
	require.NoError(t, forward.DeclareSentinel("db", "", errB))

	backward := dispatch.NewErrorTypes()
	require.NoError(t, backward.DeclareSentinel("db", "", errB))
	require.NoError(t, backward.DeclareSentinel("timeout", "", errA))

	for _, types := range []*dispatch.ErrorTypes{forward, backward} {
		got, err := types.Classify(errors.Join(errB, errA))
		assert.Equal(t, dispatch.RootErrorType, got)
		var ambiguous *dispatch.AmbiguousError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, []string{"db", "timeout"}, ambiguous.Candidates)
	}
}

func TestErrorTypes_Hierarchy(t *testing.T) {
	types := newTypes(t)

	assert.True(t, types.IsAncestorOrSelf("storage", "deadlock"))
	assert.True(t, types.IsAncestorOrSelf("deadlock", "deadlock"))
	assert.True(t, types.IsAncestorOrSelf(dispatch.RootErrorType, "validation"))
	assert.False(t, types.IsAncestorOrSelf("not_found", "deadlock"))
	assert.False(t, types.IsAncestorOrSelf("storage", "missing"))

	assert.Equal(t, 0, types.Depth(dispatch.RootErrorType))
	assert.Equal(t, 3, types.Depth("deadlock"))
	assert.Equal(t, -1, types.Depth("missing"))
}

func TestErrorTypes_DeclareErrors(t *testing.T) {
	types := dispatch.NewErrorTypes()

	assert.ErrorIs(t, types.Declare("", "", dispatch.MatchAs[*validationError]()), dispatch.ErrInvalidErrorType)
	assert.ErrorIs(t, types.Declare("x", "", nil), dispatch.ErrInvalidErrorType)
	assert.ErrorIs(t, types.Declare("x", "missing", dispatch.MatchAs[*validationError]()), dispatch.ErrUnknownErrorType)
	assert.ErrorIs(t, types.Declare(dispatch.RootErrorType, "", dispatch.MatchAs[*validationError]()), dispatch.ErrInvalidErrorType)

	_, err := dispatch.NewRegistry(types)
	require.NoError(t, err)
	assert.ErrorIs(t, types.DeclareSentinel("late", "", errPoisoned), dispatch.ErrErrorTypesFrozen)
}
