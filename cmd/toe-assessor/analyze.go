// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemaraproj/toe-assessor/internal/assessment"
	"github.com/gemaraproj/toe-assessor/internal/history"
	"github.com/gemaraproj/toe-assessor/internal/logging"
	"github.com/gemaraproj/toe-assessor/internal/storage"
	"github.com/gemaraproj/toe-assessor/internal/workbook"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse every control of the input workbook and write the report",
		Long: `Reads the control workbook (.xlsx or .csv), checks connectivity to the generation
service, then analyses the controls one at a time. The report keeps every input
column and adds "Evidence Summary" and "Evidence Sufficiency Assessment".

Interrupting the run (Ctrl-C) discards partial results; no report is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input != "" {
				a.cfg.Paths.Input = input
			}
			if output != "" {
				a.cfg.Paths.Output = output
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.analyze(ctx, cmd)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "control workbook (.xlsx, .xlsm or .csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report path (default <input>_TOE_EvidenceAnalysis.xlsx)")
	return cmd
}

func (a *app) analyze(ctx context.Context, cmd *cobra.Command) error {
	start := time.Now()
	inputPath, outputPath := a.cfg.Paths.Input, a.cfg.OutputPath()

	ds, err := workbook.Read(inputPath, workbook.DefaultColumns())
	if err != nil {
		return err
	}
	a.logger.Info("loaded controls", zap.String("input", inputPath), zap.Int("controls", len(ds.Records)))

	client, err := a.newGenerationClient(ctx)
	if err != nil {
		return err
	}
	if err := client.SelfTest(ctx); err != nil {
		return err
	}
	a.logger.Info("generation service reachable")

	publisher, err := storage.New(ctx, a.cfg.Publish)
	if err != nil {
		return err
	}

	runID := uuid.New()
	opts := []assessment.Option{
		assessment.WithLogger(logging.Component(a.logger, "assessment")),
		assessment.WithRunID(runID.String()),
	}

	var ledger *history.Store
	if a.cfg.History.Enabled {
		ledger, err = history.Open(a.cfg.History.Path)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if err := ledger.StartRun(ctx, history.Run{
			ID:       runID.String(),
			Input:    inputPath,
			Output:   outputPath,
			Provider: a.cfg.LLM.Provider,
			Model:    a.cfg.LLM.Model,
			Controls: len(ds.Records),
		}); err != nil {
			return err
		}
		opts = append(opts, assessment.WithRecorder(ledger))
	}

	analyzer := assessment.NewAnalyzer(a.newCollector(), client, a.cfg.AnalyzerSettings(), opts...)
	results, err := analyzer.Run(ctx, ds.Records)
	if err != nil {
		a.finishRun(ledger, runID, history.StatusFailed, "")
		return err
	}

	outcomes := make([]workbook.Outcome, len(results))
	for i, r := range results {
		outcomes[i] = r.Outcome()
	}
	if err := workbook.WriteReport(outputPath, ds, outcomes); err != nil {
		a.finishRun(ledger, runID, history.StatusFailed, "")
		return err
	}
	a.logger.Info("report written", zap.String("output", outputPath))

	publishedTo := ""
	if publisher != nil {
		publishedTo, err = publisher.Publish(ctx, runID, outputPath)
		if err != nil {
			a.finishRun(ledger, runID, history.StatusFailed, "")
			return fmt.Errorf("report written to %s but publishing failed: %w", outputPath, err)
		}
		a.logger.Info("report published", zap.String("publisher", publisher.Name()), zap.String("location", publishedTo))
	}
	a.finishRun(ledger, runID, history.StatusCompleted, publishedTo)

	printSummary(cmd, results, outputPath, time.Since(start))
	return nil
}

// finishRun closes the ledger entry. Ledger failures never fail the run.
func (a *app) finishRun(ledger *history.Store, runID uuid.UUID, status, publishedTo string) {
	if ledger == nil {
		return
	}
	if err := ledger.FinishRun(context.Background(), runID.String(), status, publishedTo); err != nil {
		a.logger.Warn("failed to close history entry", zap.Error(err))
	}
}

func printSummary(cmd *cobra.Command, results []assessment.Result, outputPath string, elapsed time.Duration) {
	counts := map[assessment.Verdict]int{}
	tokens := 0
	for _, r := range results {
		counts[r.Verdict]++
		tokens += r.EstimatedTokens
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Analysed %d controls in %s\n", len(results), elapsed.Round(time.Second))
	fmt.Fprintf(out, "  Sufficient (YES):   %d\n", counts[assessment.VerdictYes])
	fmt.Fprintf(out, "  Insufficient (NO):  %d\n", counts[assessment.VerdictNo])
	fmt.Fprintf(out, "  Undetermined:       %d\n", counts[assessment.VerdictUnknown])
	fmt.Fprintf(out, "  Estimated tokens:   %d\n", tokens)
	fmt.Fprintf(out, "Report: %s\n", outputPath)
}
