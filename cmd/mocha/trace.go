package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

func newTraceCmd() *cobra.Command {
	var asJSON, asText bool
	cmd := &cobra.Command{
		Use:   "trace <file.jsonl>",
		Short: "Summarize a trace written by run --trace-out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return ioError(fmt.Sprintf("cannot read file: %s", args[0]), false)
			}
			defer f.Close()

			summary, err := runtime.SummarizeTrace(f)
			if err != nil {
				return ioError(err.Error(), false)
			}

			if asText {
				summary.WriteText(cmd.OutOrStdout())
				return nil
			}
			b, err := json.Marshal(summary)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON (default)")
	cmd.Flags().BoolVar(&asText, "text", false, "print the summary as text")
	cmd.MarkFlagsMutuallyExclusive("json", "text")
	return cmd
}
