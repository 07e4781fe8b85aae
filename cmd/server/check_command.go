// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guidepost/internal/api"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe every configured collaborator and exit non-zero on failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			tables, err := loadLocales(cfg)
			if err != nil {
				return err
			}
			collabs, err := newCollaborators(cfg, tables)
			if err != nil {
				return err
			}

			checks := collabs.connectivityChecks()
			results := api.RunChecks(cmd.Context(), checks)
			failed := printCheckResults(cmd.OutOrStdout(), checks, results)
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(checks))
			}
			return nil
		},
	}
}

// printCheckResults writes one table row per check and returns the failure count.
func printCheckResults(out io.Writer, checks []api.HealthCheck, results []api.CheckResult) int {
	failed := 0
	rows := make([][]string, 0, len(checks))
	for i, check := range checks {
		res := results[i]
		status := "ok"
		if !res.OK {
			status = "FAIL"
			failed++
		}
		rows = append(rows, []string{check.Name, status, fmt.Sprintf("%dms", res.LatencyMs), res.Error})
	}

	fmt.Fprintln(out, renderTable(
		[]string{"Service", "Status", "Latency", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	return failed
}
