package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
)

// DefaultMaxCallDepth bounds recursion when Limits.MaxCallDepth is zero.
// Go cannot recover from a goroutine stack overflow.
const DefaultMaxCallDepth = 10000

// Limits holds the resource limits for a program execution. Zero means
// unlimited, except MaxCallDepth where zero means DefaultMaxCallDepth.
type Limits struct {
	TimeMs        int64 `yaml:"timeMs" json:"timeMs,omitempty"`
	MaxIterations int64 `yaml:"maxIterations" json:"maxIterations,omitempty"`
	MaxCallDepth  int   `yaml:"maxCallDepth" json:"maxCallDepth,omitempty"`
}

// Stats tracks resource consumption during execution.
type Stats struct {
	Statements int64
	Calls      int64
	Iterations int64
	MaxDepth   int
}

func (ev *evaluator) checkTimeBudget() error {
	err := ev.ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ev.opts.Limits.TimeMs > 0 {
		return &RuntimeError{
			Code:    diagnostics.EBudget,
			Message: fmt.Sprintf("time budget exceeded (%dms)", ev.opts.Limits.TimeMs),
		}
	}
	return err
}

func (ev *evaluator) checkIterationBudget() error {
	ev.stats.Iterations++
	if limit := ev.opts.Limits.MaxIterations; limit > 0 && ev.stats.Iterations > limit {
		return &RuntimeError{
			Code:    diagnostics.EBudget,
			Message: fmt.Sprintf("iteration budget exceeded (max %d)", limit),
		}
	}
	return ev.checkTimeBudget()
}

// enterCall tracks call depth; the returned func must be deferred.
func (ev *evaluator) enterCall() (func(), error) {
	ev.depth++
	leave := func() { ev.depth-- }
	limit := ev.opts.Limits.MaxCallDepth
	if limit <= 0 {
		limit = DefaultMaxCallDepth
	}
	if ev.depth > limit {
		leave()
		return nil, &RuntimeError{
			Code:    diagnostics.EBudget,
			Message: fmt.Sprintf("call depth exceeded (max %d)", limit),
		}
	}
	ev.stats.Calls++
	ev.stats.MaxDepth = max(ev.stats.MaxDepth, ev.depth)
	return leave, nil
}
