package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

func newCheckCmd(a *app) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "check <file|->",
		Short: "Parse and validate a program without running it",
		Long: `Parse a program and report lex and parse errors, variables that are read
but never assigned anywhere (E_UNBOUND), and functions that repeat a
parameter name (E_DUP_PARAM).

Diagnostics are printed as JSON unless --pretty is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			source, filename, err := readSource(args[0], cmd.InOrStdin(), pretty)
			if err != nil {
				return err
			}

			rt := runtime.New(runtime.WithLogger(a.logger))
			diags := rt.Check(source, filename)
			if len(diags) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), diagnostics.FormatDiagnostics(diags, pretty))
				return exitWith(runtime.ExitDiagnostic)
			}

			if pretty {
				fmt.Fprintln(cmd.OutOrStdout(), "No errors found.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "[]")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "human-readable diagnostics")
	return cmd
}
