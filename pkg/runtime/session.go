package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/evaluator"
	"github.com/thomasrohde/mocha/go/pkg/logging"
	"github.com/thomasrohde/mocha/go/pkg/metrics"
	"github.com/thomasrohde/mocha/go/pkg/parser"
)

// Session evaluates successive programs against one global frame, so
// bindings made by one Eval are visible to the next. A Session is not safe
// for concurrent use.
type Session struct {
	rt    *Runtime
	stack *evaluator.Stack
}

// NewSession starts a session with an empty global frame.
func (rt *Runtime) NewSession() *Session {
	return &Session{rt: rt, stack: evaluator.NewStack(nil)}
}

// Globals returns the session's global frame.
func (s *Session) Globals() evaluator.Frame {
	return s.stack.Top()
}

// Eval parses and executes source. Lex and parse failures are returned as
// a *DiagnosticError and leave the session untouched; runtime errors are
// returned as *evaluator.RuntimeError. A program that stops via `exit`
// returns a Result with Exited set and a nil error.
func (s *Session) Eval(ctx context.Context, source, filename string) (*Result, error) {
	rt := s.rt
	runID := rt.newRunID()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.FromContext(ctx, rt.logger)

	parseStart := time.Now()
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		rt.recordDiagnostics(diags)
		log.Info("parse failed", "file", filename, "code", diags[0].Code, "message", diags[0].Message)
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	log.Debug("parsed", "file", filename, "statements", len(program.Exprs), "duration", time.Since(parseStart))

	start := time.Now()
	res, err := evaluator.Execute(ctx, program, s.stack, evaluator.ExecOptions{
		Out:      rt.out,
		Prompter: rt.prompter,
		Limits:   rt.limits,
		Trace:    rt.trace,
		RunID:    runID,
	})
	result := &Result{RunID: runID, Duration: time.Since(start)}
	if res != nil {
		result.Value = res.Value
		result.Stats = res.Stats
	}

	var exit *evaluator.ExitSignal
	if errors.As(err, &exit) {
		result.Value = exit.Value
		result.Exited = true
		err = nil
	}

	rt.recordRun(result, err)
	if err != nil {
		log.Info("evaluation failed", "file", filename, "error", err, "duration", result.Duration)
		return result, err
	}
	log.Debug("evaluated", "file", filename,
		"statements", result.Stats.Statements,
		"calls", result.Stats.Calls,
		"iterations", result.Stats.Iterations,
		"exited", result.Exited,
		"duration", result.Duration)
	return result, nil
}

func (rt *Runtime) recordRun(result *Result, err error) {
	if rt.metrics == nil {
		return
	}
	status := metrics.StatusOK
	switch {
	case result.Exited:
		status = metrics.StatusExit
	case err != nil:
		status = metrics.StatusError
		var rtErr *evaluator.RuntimeError
		if errors.As(err, &rtErr) {
			rt.metrics.RecordError(rtErr.Code)
			if rtErr.Code == diagnostics.EBudget {
				status = metrics.StatusBudget
			}
		}
	}
	rt.metrics.RecordRun(status, result.Duration, result.Stats)
}
