// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemaraproj/toe-assessor/internal/assessment"
	"github.com/gemaraproj/toe-assessor/internal/logging"
	"github.com/gemaraproj/toe-assessor/internal/tool"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the evidence tools over MCP on stdio",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing:

  decode_evidence_file      decode one evidence file to text
  collect_control_evidence  assemble the budgeted corpus of a control
  assess_control            summarise and assess a control (needs an API key)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			collector := a.newCollector()
			tools := tool.New(collector, nil)
			if client, err := a.newGenerationClient(ctx); err != nil {
				a.logger.Warn("assess_control disabled", zap.Error(err))
			} else {
				tools = tool.New(collector, assessment.NewAnalyzer(collector, client, a.cfg.AnalyzerSettings(),
					assessment.WithLogger(logging.Component(a.logger, "assessment"))))
			}

			a.logger.Info("serving MCP tools on stdio", zap.String("evidence_root", a.cfg.Paths.EvidenceRoot))
			return tool.Serve(ctx, tool.NewServer(tools, version))
		},
	}
}
