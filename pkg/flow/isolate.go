package flow

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// isolated is the outcome of telemetry side code run through isolate.
type isolated struct {
	site     string
	err      error
	panicked bool
}

func (r isolated) ok() bool {
	return r.err == nil
}

// isolate runs fn and captures its error or panic. Nothing it captures is ever
// returned to application code.
func isolate(site string, fn func() error) (res isolated) {
	res.site = site
	defer func() {
		if r := recover(); r != nil {
			res.panicked = true
			res.err = fmt.Errorf("panic in %s: %v", site, r)
		}
	}()
	res.err = fn()
	return res
}

// discard logs and counts a failed isolated call.
func (e *Engine) discard(ctx context.Context, res isolated) bool {
	if res.ok() {
		return true
	}
	e.metrics.failures.Increment(ctx, observability.String("site", res.site))
	e.logger.Warn(ctx, "flow telemetry call failed",
		observability.String("site", res.site),
		observability.Bool("panic", res.panicked),
		observability.Error(res.err),
	)
	return false
}
