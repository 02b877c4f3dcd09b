package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/evaluator"
	"github.com/thomasrohde/mocha/go/pkg/parser"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

const (
	replFilename       = "<repl>"
	continuationPrompt = "...... "
)

// lineReader is the part of liner.State the REPL loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Bindings persist from one entry to the next;
an entry with unclosed brackets continues on the next line.

Commands: :globals prints the global bindings as JSON, :quit leaves.
The session also ends on exit or end of input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}

			ln := liner.NewLiner()
			defer ln.Close()
			ln.SetCtrlCAborts(true)

			historyFile := a.cfg.REPL.HistoryFile
			if historyFile != "" {
				if f, err := os.Open(historyFile); err == nil {
					_, _ = ln.ReadHistory(f)
					_ = f.Close()
				}
				defer func() {
					f, err := os.Create(historyFile)
					if err != nil {
						a.logger.Warn("cannot save history", "path", historyFile, "error", err)
						return
					}
					_, _ = ln.WriteHistory(f)
					_ = f.Close()
				}()
			}

			out := cmd.OutOrStdout()
			rt := runtime.New(
				runtime.WithOutput(out),
				runtime.WithPrompter(linerPrompter{ln: ln}),
				runtime.WithLimits(a.cfg.Limits),
				runtime.WithLogger(a.logger),
			)
			fmt.Fprintf(out, "mocha %s. Type :quit to leave.\n", Version)
			return exitWith(repl(cmd.Context(), ln, rt.NewSession(), a.cfg.REPL.Prompt, out, cmd.ErrOrStderr()))
		},
	}
}

// repl reads and evaluates entries until :quit, exit or end of input.
// Errors are reported and the session carries on.
func repl(ctx context.Context, lines lineReader, s *runtime.Session, prompt string, out, errOut io.Writer) int {
	for {
		src, ok := readEntry(lines, prompt)
		if !ok {
			fmt.Fprintln(out)
			return runtime.ExitOK
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		lines.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			switch trimmed {
			case ":quit", ":q":
				return runtime.ExitOK
			case ":globals":
				b, err := evaluator.FrameToJSON(s.Globals())
				if err != nil {
					fmt.Fprintln(errOut, err)
					continue
				}
				fmt.Fprintln(out, string(b))
			default:
				fmt.Fprintln(errOut, "unknown command. Type :globals or :quit.")
			}
			continue
		}

		// Ctrl-C while a program runs stops that program only.
		evalCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		result, err := s.Eval(evalCtx, src, replFilename)
		stop()
		if err != nil {
			reportError(errOut, err, true)
			continue
		}
		if result.Exited {
			return runtime.ExitOK
		}
		fmt.Fprintln(out, evaluator.Repr(result.Value))
	}
}

// readEntry reads lines until they form a complete program. It returns false
// at end of input with nothing pending.
func readEntry(lines lineReader, prompt string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = continuationPrompt
		}
		line, err := lines.Prompt(p)
		switch {
		case errors.Is(err, io.EOF):
			if b.Len() > 0 {
				return b.String(), true
			}
			return "", false
		case errors.Is(err, liner.ErrPromptAborted):
			return "", true
		case err != nil:
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !incomplete(b.String()) {
			return b.String(), true
		}
	}
}

// incomplete reports whether src fails to parse only because it ends early,
// e.g. with an unclosed bracket or a trailing operator.
func incomplete(src string) bool {
	_, diags := parser.Parse(src, replFilename)
	if len(diags) == 0 {
		return false
	}
	d := diags[0]
	return d.Code == diagnostics.EParse && strings.HasSuffix(d.Message, "end of input")
}
