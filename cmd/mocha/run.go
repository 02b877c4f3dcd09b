package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/thomasrohde/mocha/go/pkg/evaluator"
	"github.com/thomasrohde/mocha/go/pkg/metrics"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

type runOptions struct {
	json       bool
	quiet      bool
	pretty     bool
	watch      bool
	traceOut   string
	metricsOut string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Run a MochaScript program",
		Long: `Run a MochaScript program and print its final value.

The program is read from the file, or from stdin when the argument is "-".
A program that stops with exit prints the exit operand instead.

Exit codes: 0 ok, 1 usage or I/O, 2 lex/parse error, 4 runtime error,
5 budget exceeded.

Examples:
  # Run a file
  mocha run fib.mocha

  # Print the final value as JSON
  mocha run fib.mocha --json

  # Re-run whenever the file changes
  mocha run fib.mocha --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			return runFile(cmd, a, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the final value as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the final value")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "human-readable diagnostics")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run when the file changes")
	cmd.Flags().StringVar(&opts.traceOut, "trace-out", "", "write NDJSON trace events to `file`")
	cmd.Flags().StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to `file` after each run")
	cmd.MarkFlagsMutuallyExclusive("json", "quiet")
	return cmd
}

func runFile(cmd *cobra.Command, a *app, path string, opts *runOptions) error {
	if opts.watch && path == "-" {
		return &exitError{code: runtime.ExitUsage, err: fmt.Errorf("--watch needs a file, not stdin")}
	}

	var rtOpts []runtime.Option
	var tw *runtime.TraceWriter
	if opts.traceOut != "" {
		f, err := os.Create(opts.traceOut)
		if err != nil {
			return ioError(fmt.Sprintf("cannot create trace file: %s", opts.traceOut), opts.pretty)
		}
		defer f.Close()
		tw = runtime.NewTraceWriter(f)
		rtOpts = append(rtOpts, runtime.WithTrace(tw.Emit))
	}
	var collector *metrics.Collector
	if opts.metricsOut != "" {
		collector = metrics.NewCollector(nil)
		rtOpts = append(rtOpts, runtime.WithMetrics(collector))
	}

	stdin := cmd.InOrStdin()
	stdout := cmd.OutOrStdout()
	prompter := evaluator.NewReaderPrompter(stdout, stdin)
	if path != "-" && isTerminal(stdin) {
		ln := liner.NewLiner()
		defer ln.Close()
		ln.SetCtrlCAborts(true)
		prompter = linerPrompter{ln: ln}
	}

	rt := runtime.New(append(rtOpts,
		runtime.WithOutput(stdout),
		runtime.WithPrompter(prompter),
		runtime.WithLimits(a.cfg.Limits),
		runtime.WithLogger(a.logger),
	)...)

	runOnce := func(ctx context.Context) int {
		code := runProgram(ctx, cmd, rt, path, opts)
		if tw != nil && tw.Err() != nil {
			a.logger.Warn("trace write failed", "path", opts.traceOut, "error", tw.Err())
		}
		if collector != nil {
			if err := collector.WriteToTextfile(opts.metricsOut); err != nil {
				a.logger.Warn("metrics write failed", "error", err)
			}
		}
		return code
	}

	if !opts.watch {
		return exitWith(runOnce(cmd.Context()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	code := runOnce(ctx)
	err := watchFile(ctx, path, defaultDebounce, a.logger, func() {
		fmt.Fprintf(cmd.ErrOrStderr(), "--- %s changed, re-running\n", path)
		code = runOnce(ctx)
	})
	if err != nil {
		return &exitError{code: runtime.ExitUsage, err: err}
	}
	return exitWith(code)
}

// runProgram executes one program and prints its value or diagnostics.
func runProgram(ctx context.Context, cmd *cobra.Command, rt *runtime.Runtime, path string, opts *runOptions) int {
	source, filename, err := readSource(path, cmd.InOrStdin(), opts.pretty)
	if err != nil {
		if exitErr, ok := err.(*exitError); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), exitErr.err)
			return exitErr.code
		}
		return runtime.ExitUsage
	}

	result, err := rt.Run(ctx, source, filename)
	if err != nil {
		return reportError(cmd.ErrOrStderr(), err, opts.pretty)
	}
	if !result.Exited && !opts.quiet {
		printValue(cmd.OutOrStdout(), result.Value, opts.json)
	}
	return runtime.ExitOK
}

func printValue(w io.Writer, v evaluator.Value, asJSON bool) {
	if asJSON {
		fmt.Fprintln(w, evaluator.ValueToJSONString(v))
		return
	}
	fmt.Fprintln(w, evaluator.Repr(v))
}
