package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thomasrohde/mocha/go/pkg/formatter"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

func newFmtCmd(a *app) *cobra.Command {
	var write, pretty bool
	cmd := &cobra.Command{
		Use:   "fmt <file|->",
		Short: "Print a program in canonical form",
		Long: `Print a program in canonical form: one statement per line, single spaces
around operators, and only the parentheses precedence requires.

Comments are not preserved; a warning is printed when the input has any.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			path := args[0]
			if write && path == "-" {
				return &exitError{code: runtime.ExitUsage, err: fmt.Errorf("--write needs a file, not stdin")}
			}
			source, filename, err := readSource(path, cmd.InOrStdin(), pretty)
			if err != nil {
				return err
			}

			formatted, err := runtime.New(runtime.WithLogger(a.logger)).Format(source, filename)
			if err != nil {
				return exitWith(reportError(cmd.ErrOrStderr(), err, pretty))
			}
			if formatter.HasComments(source) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: comments are not preserved by the formatter")
			}

			if write {
				if formatted == source {
					return nil
				}
				if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
					return &exitError{code: runtime.ExitUsage, err: fmt.Errorf("error writing file: %w", err)}
				}
				a.logger.Debug("formatted", "path", path)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "human-readable diagnostics")
	return cmd
}
