// Package runtime provides the top-level MochaScript runtime orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/evaluator"
	"github.com/thomasrohde/mocha/go/pkg/formatter"
	"github.com/thomasrohde/mocha/go/pkg/logging"
	"github.com/thomasrohde/mocha/go/pkg/metrics"
	"github.com/thomasrohde/mocha/go/pkg/parser"
	"github.com/thomasrohde/mocha/go/pkg/validator"
)

// Process exit codes used by the CLI.
const (
	ExitOK         = 0
	ExitUsage      = 1
	ExitDiagnostic = 2
	ExitRuntime    = 4
	ExitBudget     = 5
)

// Result holds the outcome of a program execution.
type Result struct {
	// Value is the value of the last statement, or the operand of `exit`.
	Value evaluator.Value
	// Exited is set when the program stopped through `exit`.
	Exited   bool
	Stats    evaluator.Stats
	RunID    string
	Duration time.Duration
}

// Runtime wires together the parser, evaluator and host services.
type Runtime struct {
	out      io.Writer
	prompter evaluator.Prompter
	limits   evaluator.Limits
	logger   *slog.Logger
	metrics  *metrics.Collector
	trace    func(event evaluator.TraceEvent)
	runID    string
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithOutput sets the writer for say, ask prompts and exit.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.out = w
	}
}

// WithPrompter sets the input source for ask.
func WithPrompter(p evaluator.Prompter) Option {
	return func(rt *Runtime) {
		rt.prompter = p
	}
}

// WithLimits sets the evaluation limits.
func WithLimits(l evaluator.Limits) Option {
	return func(rt *Runtime) {
		rt.limits = l
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithMetrics records every run on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(rt *Runtime) {
		rt.metrics = c
	}
}

// WithRunID fixes the run ID for trace events. By default every run gets a
// fresh UUID.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// New creates a new Runtime with the given options. Output is discarded
// and logging is disabled unless configured.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		out:    io.Discard,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Run parses and executes a program in a fresh session.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	return rt.NewSession().Eval(ctx, source, filename)
}

// Check parses and validates a program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		rt.recordDiagnostics(diags)
		return diags
	}
	vDiags := validator.Validate(program)
	rt.recordDiagnostics(vDiags)
	return vDiags
}

// Format parses and formats a program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

func (rt *Runtime) newRunID() string {
	if rt.runID != "" {
		return rt.runID
	}
	return uuid.NewString()
}

func (rt *Runtime) recordDiagnostics(diags []diagnostics.Diagnostic) {
	if rt.metrics == nil {
		return
	}
	for _, d := range diags {
		rt.metrics.RecordError(d.Code)
	}
}

// DiagnosticError wraps lex, parse or validation diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}

// ExitCode maps an error returned by Run or Eval to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var diagErr *DiagnosticError
	if errors.As(err, &diagErr) {
		return ExitDiagnostic
	}
	var rtErr *evaluator.RuntimeError
	if errors.As(err, &rtErr) {
		if rtErr.Code == diagnostics.EBudget {
			return ExitBudget
		}
		return ExitRuntime
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExitRuntime
	}
	return ExitUsage
}

// Diagnostics returns the diagnostics carried by err, if it is a
// DiagnosticError or a RuntimeError.
func Diagnostics(err error) []diagnostics.Diagnostic {
	var diagErr *DiagnosticError
	if errors.As(err, &diagErr) {
		return diagErr.Diagnostics
	}
	var rtErr *evaluator.RuntimeError
	if errors.As(err, &rtErr) {
		return []diagnostics.Diagnostic{rtErr.Diagnostic()}
	}
	return nil
}
