// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemaraproj/toe-assessor/internal/config"
)

func newSelfTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Check connectivity to the configured generation service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newGenerationClient(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.SelfTest(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s %s (key %s)\n",
				a.cfg.LLM.Provider, a.cfg.LLM.Model, config.Mask(a.cfg.LLM.APIKey))
			return nil
		},
	}
}
