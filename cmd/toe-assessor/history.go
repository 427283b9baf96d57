// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemaraproj/toe-assessor/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the control results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(a.cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				results, err := store.Results(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "CONTROL\tVERDICT\tSOURCES\tCHARS\tTRUNCATED\tTOKENS")
				for _, r := range results {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%d\n", r.ControlID, r.Verdict, r.Sources, r.EvidenceChars, r.Truncated, r.EstimatedTokens)
				}
				return nil
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tCONTROLS\tMODEL\tINPUT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Controls, r.Model, r.Input)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}
