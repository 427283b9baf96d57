// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectCmd(a *app) *cobra.Command {
	var statsOnly bool

	cmd := &cobra.Command{
		Use:   "collect <control-id>",
		Short: "Print the evidence corpus of one control without calling the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus := a.newCollector().Collect(cmd.Context(), args[0])

			out := cmd.OutOrStdout()
			if !statsOnly {
				fmt.Fprintln(out, corpus.Text)
				fmt.Fprintln(out)
			}
			if corpus.NoEvidence {
				fmt.Fprintf(out, "Control %s: no evidence\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "Control %s: %d sources, %d chars, ~%d tokens, truncated=%t\n",
				args[0], corpus.SourceCount(), corpus.TotalChars, corpus.EstimatedTokens(), corpus.Truncated)
			for _, s := range corpus.Sources {
				line := fmt.Sprintf("  %-40s %-12s %-8s %6d chars", s.Name, s.Format, s.Status, s.Chars)
				if s.Dropped {
					line += "  (dropped)"
				} else if s.Truncated {
					line += "  (truncated)"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "print only the per-source statistics")
	return cmd
}
