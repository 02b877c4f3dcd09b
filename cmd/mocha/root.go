package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thomasrohde/mocha/go/pkg/config"
	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/logging"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

// app holds the global flags and the configuration loaded from them.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
}

// exitError carries a process exit code out of a command. A nil err means
// the command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int) error {
	if code == runtime.ExitOK {
		return nil
	}
	return &exitError{code: code}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mocha",
		Short: "MochaScript interpreter",
		Long: `Mocha is a tree-walking interpreter for MochaScript, a small dynamically
typed expression language with numbers, strings, booleans, arrays and
first-class functions.

Configuration is read from --config, else ./.mocha.yaml, else
~/.mocha/config.yaml. MOCHA_* environment variables override the file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log format (text, json)")

	root.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newFmtCmd(a),
		newTraceCmd(),
		newReplCmd(a),
		newVersionCmd(),
	)
	return root
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return runtime.ExitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintln(stderr, exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return runtime.ExitUsage
}

// load reads the configuration and builds the logger. Flag overrides win
// over the file and the environment.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return configError(err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if err := config.Validate(cfg); err != nil {
		return configError(err)
	}

	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return configError(err)
	}
	if cfg.Source != "" {
		logger.Debug("configuration loaded", "path", cfg.Source)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func configError(err error) error {
	d := diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, "")
	return &exitError{code: runtime.ExitUsage, err: errors.New(diagnostics.FormatDiagnostic(d, true))}
}

// reportError prints the diagnostics carried by err, or err itself, and
// returns the matching exit code.
func reportError(w io.Writer, err error, pretty bool) int {
	if diags := runtime.Diagnostics(err); diags != nil {
		fmt.Fprintln(w, diagnostics.FormatDiagnostics(diags, pretty))
	} else {
		fmt.Fprintln(w, err)
	}
	return runtime.ExitCode(err)
}
