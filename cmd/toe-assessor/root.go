// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemaraproj/toe-assessor/internal/config"
	"github.com/gemaraproj/toe-assessor/internal/logging"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath   string
	envFile      string
	evidenceRoot string
	verbose      bool
}

// app carries the resolved configuration and logger into each command.
type app struct {
	opts   globalOptions
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "toe-assessor",
		Short: "Test of Effectiveness evidence analysis for audit controls",
		Long: `toe-assessor collects the evidence filed for each audit control, bounds it to a
fixed character budget and asks a language model for an evidence summary and a
YES/NO sufficiency verdict with auditor-style reasoning.

Evidence lives in one folder per control below the evidence root:

  Evidence/
    C001/  access-review.xlsx  approval.msg  screenshot.png
    C002/  policy.docx`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", config.DefaultPath, "path to the YAML configuration file")
	flags.StringVar(&a.opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file holding API keys and credentials")
	flags.StringVarP(&a.opts.evidenceRoot, "evidence-root", "e", "", "folder containing one evidence folder per control")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newAnalyzeCmd(a),
		newCollectCmd(a),
		newSelfTestCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration, secrets and the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	if a.opts.evidenceRoot != "" {
		cfg.Paths.EvidenceRoot = a.opts.evidenceRoot
	}
	if a.opts.verbose {
		cfg.Logging.Level = "debug"
	}
	if cmd.Name() == "serve" {
		// stdout carries the MCP protocol.
		cfg.Logging.Output = "stderr"
	}
	if err := cfg.ResolveSecrets(a.opts.envFile); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
