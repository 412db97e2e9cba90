package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/devkit-flow/pkg/dispatch"
)

func nop(ctx context.Context, inv dispatch.Invocation) error {
	return nil
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name       string
		components []dispatch.Component
		wantErr    error
		wantRule   string
		contains   []string
	}{
		{
			name: "two wildcard failure handlers",
			components: []dispatch.Component{{
				Name: "alerts",
				Handlers: []dispatch.Handler{
					{Method: "onAnyFailure", Outcome: dispatch.OutcomeFailure, Func: nop},
					{Method: "onAnyStorageFailure", Outcome: dispatch.OutcomeFailure, ErrorType: "storage", Func: nop},
				},
			}},
			wantErr:  dispatch.ErrAmbiguousWildcard,
			wantRule: "single-wildcard-failure-handler",
			contains: []string{"alerts", "onAnyFailure", "onAnyStorageFailure"},
		},
		{
			name: "same name and error type twice",
			components: []dispatch.Component{{
				Name: "orders",
				Handlers: []dispatch.Handler{
					{Method: "a", Flow: "orders.create", Outcome: dispatch.OutcomeFailure, ErrorType: "timeout", Func: nop},
					{Method: "b", Flow: "orders.create", Outcome: dispatch.OutcomeFailure, ErrorType: "timeout", Func: nop},
				},
			}},
			wantErr:  dispatch.ErrAmbiguousErrorType,
			wantRule: "unique-failure-error-type",
			contains: []string{"a", "b"},
		},
		{
			name: "error type on success handler",
			components: []dispatch.Component{{
				Name:     "orders",
				Handlers: []dispatch.Handler{{Method: "ok", Outcome: dispatch.OutcomeSuccess, ErrorType: "timeout", Func: nop}},
			}},
			wantErr:  dispatch.ErrErrorTypeNotAllowed,
			wantRule: "error-type-on-failure-only",
		},
		{
			name: "undeclared error type",
			components: []dispatch.Component{{
				Name:     "orders",
				Handlers: []dispatch.Handler{{Method: "x", Outcome: dispatch.OutcomeFailure, ErrorType: "nope", Func: nop}},
			}},
			wantErr: dispatch.ErrUnknownErrorType,
		},
		{
			name:       "unnamed component",
			components: []dispatch.Component{{}},
			wantErr:    dispatch.ErrInvalidComponent,
		},
		{
			name:       "duplicate component",
			components: []dispatch.Component{{Name: "a"}, {Name: "a"}},
			wantErr:    dispatch.ErrDuplicateComponent,
		},
		{
			name:       "two fallbacks",
			components: []dispatch.Component{{Name: "a", Fallback: true}, {Name: "b", Fallback: true}},
			wantErr:    dispatch.ErrMultipleFallbacks,
		},
		{
			name: "nil function",
			components: []dispatch.Component{{
				Name:     "orders",
				Handlers: []dispatch.Handler{{Method: "x"}},
			}},
			wantErr: dispatch.ErrInvalidHandler,
		},
		{
			name: "two not-matched hooks",
			components: []dispatch.Component{{
				Name: "orders",
				Handlers: []dispatch.Handler{
					{Method: "first", NotMatched: true, Func: nop},
					{Method: "second", NotMatched: true, Func: nop},
				},
			}},
			wantErr:  dispatch.ErrDuplicateNotMatched,
			contains: []string{"first", "second"},
		},
		{
			name: "not-matched hook with a flow name",
			components: []dispatch.Component{{
				Name:     "orders",
				Handlers: []dispatch.Handler{{Method: "nm", NotMatched: true, Flow: "only.this", Func: nop}},
			}},
			wantErr:  dispatch.ErrNotMatchedFilter,
			wantRule: "not-matched-unfiltered",
			contains: []string{"nm"},
		},
		{
			name: "not-matched hook with an outcome",
			components: []dispatch.Component{{
				Name:     "orders",
				Handlers: []dispatch.Handler{{Method: "nm", NotMatched: true, Outcome: dispatch.OutcomeFailure, Func: nop}},
			}},
			wantErr:  dispatch.ErrNotMatchedFilter,
			wantRule: "not-matched-unfiltered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dispatch.NewRegistry(newTypes(t), tt.components...)
			require.ErrorIs(t, err, tt.wantErr)

			var cfgErr *dispatch.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			if tt.wantRule != "" {
				assert.Equal(t, tt.wantRule, cfgErr.Rule)
			}
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestNewRegistry_AcceptsDistinctDeclarations(t *testing.T) {
	reg, err := dispatch.NewRegistry(newTypes(t),
		dispatch.Component{
			Name: "orders",
			Handlers: []dispatch.Handler{
				{Method: "anyFailure", Outcome: dispatch.OutcomeFailure, Func: nop},
				{Method: "rootFailure", Lifecycle: dispatch.RootFlowFinished, Outcome: dispatch.OutcomeFailure, Func: nop},
				{Method: "createStorage", Flow: "orders.create", Outcome: dispatch.OutcomeFailure, ErrorType: "storage", Func: nop},
				{Method: "createTimeout", Flow: "orders.create", Outcome: dispatch.OutcomeFailure, ErrorType: "timeout", Func: nop},
				{Method: "notMatched", NotMatched: true, Func: nop},
				{Method: "rootNotMatched", Lifecycle: dispatch.RootFlowFinished, NotMatched: true, Func: nop},
			},
		},
		dispatch.Component{Name: "audit", Fallback: true},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "audit"}, reg.Components())
}
