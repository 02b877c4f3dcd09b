package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/thomasrohde/mocha/go/pkg/ast"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart   TraceEventType = "run_start"
	TraceRunEnd     TraceEventType = "run_end"
	TraceStmtStart  TraceEventType = "stmt_start"
	TraceStmtEnd    TraceEventType = "stmt_end"
	TraceCallStart  TraceEventType = "call_start"
	TraceCallEnd    TraceEventType = "call_end"
	TraceForStart   TraceEventType = "for_start"
	TraceForEnd     TraceEventType = "for_end"
	TraceWhileStart TraceEventType = "while_start"
	TraceWhileEnd   TraceEventType = "while_end"
	TraceSay        TraceEventType = "say"
	TraceAsk        TraceEventType = "ask"
	TraceExit       TraceEventType = "exit"
	TraceError      TraceEventType = "error"
)

// TraceEvent represents a single trace event emitted during execution.
type TraceEvent struct {
	Timestamp string         `json:"ts"`
	RunID     string         `json:"runId"`
	Event     TraceEventType `json:"event"`
	Span      *ast.Span      `json:"span,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ExecOptions configures program execution.
type ExecOptions struct {
	// Out receives say, ask prompts and exit output. Nil discards output.
	Out io.Writer
	// Prompter reads input for ask. Nil behaves as if input is at EOF.
	Prompter Prompter
	Limits   Limits
	Trace    func(event TraceEvent)
	RunID    string
}

// ExecResult holds the result of a program execution.
type ExecResult struct {
	Value Value
	Stats Stats
}

// RuntimeError represents an error raised while evaluating a program.
type RuntimeError struct {
	Code    string
	Message string
	Span    *ast.Span
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Diagnostic converts the error into a diagnostic for reporting.
func (e *RuntimeError) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.MakeDiag(e.Code, e.Message, e.Span, "")
}

// ExitSignal is returned when the program runs `exit`. It unwinds
// evaluation but is a successful termination, not a failure.
type ExitSignal struct {
	Value Value
}

func (e *ExitSignal) Error() string {
	return "exit"
}

type evaluator struct {
	ctx      context.Context
	opts     ExecOptions
	out      io.Writer
	prompter Prompter
	stack    *Stack
	stats    Stats
	depth    int
}

func (ev *evaluator) emit(event TraceEventType, span *ast.Span, data map[string]any) {
	if ev.opts.Trace == nil {
		return
	}
	ev.opts.Trace(TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     ev.opts.RunID,
		Event:     event,
		Span:      span,
		Data:      data,
	})
}

// Execute evaluates a program against stack and returns the value of its
// last statement. A nil stack starts from an empty global frame. Stopping
// via exit returns an *ExitSignal error; every frame pushed during the run
// is popped again before Execute returns.
func Execute(ctx context.Context, program *ast.Block, stack *Stack, opts ExecOptions) (*ExecResult, error) {
	if stack == nil {
		stack = NewStack(nil)
	}
	ev := &evaluator{
		ctx:      ctx,
		opts:     opts,
		out:      opts.Out,
		prompter: opts.Prompter,
		stack:    stack,
	}
	if ev.out == nil {
		ev.out = io.Discard
	}
	if ev.prompter == nil {
		ev.prompter = eofPrompter{out: ev.out}
	}

	if opts.Limits.TimeMs > 0 {
		var cancel context.CancelFunc
		ev.ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.Limits.TimeMs)*time.Millisecond)
		defer cancel()
	}

	span := program.Span
	ev.emit(TraceRunStart, &span, nil)

	val, err := ev.evalBlock(program)

	if err != nil {
		var rerr *RuntimeError
		if errors.As(err, &rerr) {
			ev.emit(TraceError, rerr.Span, map[string]any{"code": rerr.Code, "message": rerr.Message})
		}
	}
	ev.emit(TraceRunEnd, &span, nil)

	if err != nil {
		return &ExecResult{Stats: ev.stats}, err
	}
	return &ExecResult{Value: val, Stats: ev.stats}, nil
}

// at attaches span to a runtime error that does not carry one yet.
func at(err error, span ast.Span) error {
	var rerr *RuntimeError
	if errors.As(err, &rerr) && rerr.Span == nil {
		rerr.Span = &span
	}
	return err
}

func (ev *evaluator) evalBlock(block *ast.Block) (Value, error) {
	last := Sentinel()
	for _, expr := range block.Exprs {
		if err := ev.checkTimeBudget(); err != nil {
			return nil, at(err, expr.NodeSpan())
		}
		ev.stats.Statements++

		span := expr.NodeSpan()
		ev.emit(TraceStmtStart, &span, nil)
		val, err := ev.eval(expr)
		if err != nil {
			return nil, err
		}
		ev.emit(TraceStmtEnd, &span, nil)
		last = val
	}
	return last, nil
}

func (ev *evaluator) eval(expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.NumberLit:
		return NewNumber(e.Value), nil
	case *ast.StringLit:
		return NewString(e.Value), nil
	case *ast.BoolLit:
		return NewBool(e.Value), nil
	case *ast.ArrayLit:
		items := make([]Value, len(e.Elements))
		for i, elem := range e.Elements {
			v, err := ev.eval(elem)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return Array{Items: items}, nil
	case *ast.FnLit:
		// The closure snapshot is taken when a call returns this function;
		// until then calls see the caller's frame.
		fn := Function{Name: e.Name, Params: e.Params, Body: e.Body}
		if e.Name != "" {
			ev.stack.Set(e.Name, fn)
		}
		return fn, nil
	case *ast.Ref:
		v, ok := ev.stack.Get(e.Name)
		if !ok {
			return nil, &RuntimeError{
				Code:    diagnostics.EName,
				Message: fmt.Sprintf("name '%s' is not defined", e.Name),
				Span:    &e.Span,
			}
		}
		return v, nil
	case *ast.BinOp:
		left, err := ev.eval(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(e.Right)
		if err != nil {
			return nil, err
		}
		v, err := Binary(e.Op, left, right)
		return v, at(err, e.Span)
	case *ast.UnOp:
		operand, err := ev.eval(e.Operand)
		if err != nil {
			return nil, err
		}
		v, err := Unary(e.Op, operand)
		return v, at(err, e.Span)
	case *ast.Range:
		from, err := ev.eval(e.From)
		if err != nil {
			return nil, err
		}
		to, err := ev.eval(e.To)
		if err != nil {
			return nil, err
		}
		v, err := MakeRange(from, to)
		return v, at(err, e.Span)
	case *ast.Contains:
		item, err := ev.eval(e.Item)
		if err != nil {
			return nil, err
		}
		container, err := ev.eval(e.Container)
		if err != nil {
			return nil, err
		}
		v, err := Contains(item, container)
		return v, at(err, e.Span)
	case *ast.If:
		return ev.evalIf(e)
	case *ast.While:
		return ev.evalWhile(e)
	case *ast.For:
		return ev.evalFor(e)
	case *ast.Block:
		return ev.evalBlock(e)
	case *ast.Assign:
		v, err := ev.eval(e.Value)
		if err != nil {
			return nil, err
		}
		ev.stack.Set(e.Name, v)
		return v, nil
	case *ast.InPlaceAssign:
		return ev.evalInPlaceAssign(e)
	case *ast.Call:
		return ev.evalCall(e)
	case *ast.Say:
		v, err := ev.eval(e.Value)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(ev.out, v.String())
		ev.emit(TraceSay, &e.Span, map[string]any{"value": v.String()})
		return v, nil
	case *ast.Ask:
		return ev.evalAsk(e)
	case *ast.Exit:
		return ev.evalExit(e)
	}
	return nil, &RuntimeError{
		Code:    diagnostics.EType,
		Message: fmt.Sprintf("cannot evaluate %s", expr.Kind()),
	}
}

func (ev *evaluator) evalIf(e *ast.If) (Value, error) {
	cond, err := ev.eval(e.Cond)
	if err != nil {
		return nil, err
	}
	if Truthiness(cond) {
		return ev.eval(e.Then)
	}
	if e.Else != nil {
		return ev.eval(e.Else)
	}
	return Sentinel(), nil
}

func (ev *evaluator) evalWhile(e *ast.While) (Value, error) {
	ev.emit(TraceWhileStart, &e.Span, nil)
	last := Sentinel()
	iterations := 0
	for {
		cond, err := ev.eval(e.Cond)
		if err != nil {
			return nil, err
		}
		if !Truthiness(cond) {
			break
		}
		if err := ev.checkIterationBudget(); err != nil {
			return nil, at(err, e.Span)
		}
		iterations++
		v, err := ev.eval(e.Body)
		if err != nil {
			return nil, err
		}
		last = v
	}
	ev.emit(TraceWhileEnd, &e.Span, map[string]any{"iterations": iterations})
	return last, nil
}

func (ev *evaluator) evalFor(e *ast.For) (Value, error) {
	iterable, err := ev.eval(e.Iterable)
	if err != nil {
		return nil, err
	}
	arr, ok := iterable.(Array)
	if !ok {
		return nil, &RuntimeError{
			Code:    diagnostics.EType,
			Message: fmt.Sprintf("for loop expects an Array, got %s", iterable.TypeName()),
			Span:    &e.Span,
		}
	}

	ev.emit(TraceForStart, &e.Span, map[string]any{"var": e.Var, "items": len(arr.Items)})
	release := ev.stack.Push(ev.stack.Top().Clone())
	defer release()

	last := Sentinel()
	for _, item := range arr.Items {
		if err := ev.checkIterationBudget(); err != nil {
			return nil, at(err, e.Span)
		}
		ev.stack.Set(e.Var, item)
		v, err := ev.eval(e.Body)
		if err != nil {
			return nil, err
		}
		last = v
	}
	ev.emit(TraceForEnd, &e.Span, nil)
	return last, nil
}

func (ev *evaluator) evalInPlaceAssign(e *ast.InPlaceAssign) (Value, error) {
	current, ok := ev.stack.Get(e.Name)
	if !ok {
		return nil, &RuntimeError{
			Code:    diagnostics.EName,
			Message: fmt.Sprintf("name '%s' is not defined", e.Name),
			Span:    &e.Span,
		}
	}
	operand, err := ev.eval(e.Value)
	if err != nil {
		return nil, err
	}
	v, err := Binary(e.Op, current, operand)
	if err != nil {
		return nil, at(err, e.Span)
	}
	ev.stack.Set(e.Name, v)
	return v, nil
}

func (ev *evaluator) evalCall(e *ast.Call) (Value, error) {
	callee, err := ev.eval(e.Callee)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(Function)
	if !ok {
		return nil, &RuntimeError{
			Code:    diagnostics.EType,
			Message: fmt.Sprintf("%s is not callable", callee.TypeName()),
			Span:    &e.Span,
		}
	}

	args := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := ev.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	leave, err := ev.enterCall()
	if err != nil {
		return nil, at(err, e.Span)
	}
	defer leave()
	if err := ev.checkTimeBudget(); err != nil {
		return nil, at(err, e.Span)
	}

	// Extra arguments are dropped; parameters without an argument stay
	// unbound.
	frame := Merge(ev.stack.Top(), fn.Closure)
	for i, param := range fn.Params {
		if i < len(args) {
			frame[param] = args[i]
		}
	}

	name := fn.Name
	if name == "" {
		name = "<anonymous>"
	}
	ev.emit(TraceCallStart, &e.Span, map[string]any{"fn": name, "args": len(args), "depth": ev.depth})

	release := ev.stack.Push(frame)
	defer release()

	result, err := ev.eval(fn.Body)
	if err != nil {
		return nil, err
	}
	if inner, ok := result.(Function); ok {
		inner.Closure = ev.stack.Top().Clone()
		result = inner
	}

	ev.emit(TraceCallEnd, &e.Span, map[string]any{"fn": name})
	return result, nil
}

func (ev *evaluator) evalAsk(e *ast.Ask) (Value, error) {
	prompt, err := ev.eval(e.Prompt)
	if err != nil {
		return nil, err
	}
	line, err := ev.prompter.Prompt(prompt.String())
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	ev.emit(TraceAsk, &e.Span, map[string]any{"prompt": prompt.String()})
	return NewString(line), nil
}

func (ev *evaluator) evalExit(e *ast.Exit) (Value, error) {
	var v Value = NewString("")
	if e.Value != nil {
		var err error
		v, err = ev.eval(e.Value)
		if err != nil {
			return nil, err
		}
	}
	fmt.Fprintln(ev.out, v.String())
	ev.emit(TraceExit, &e.Span, map[string]any{"value": v.String()})
	return nil, &ExitSignal{Value: v}
}
