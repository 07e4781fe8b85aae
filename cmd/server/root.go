// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guidepost/internal/config"
	"github.com/tomtom215/guidepost/internal/logging"
)

// commandContext carries persistent flags to subcommands.
type commandContext struct {
	configFlag *string
}

// loadConfig loads configuration and applies its logging section.
func (c *commandContext) loadConfig(opts ...config.LoadOption) (*config.Config, error) {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			opts = append(opts, config.WithConfigFile(path))
		}
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "guidepost",
		Short:         "Landmark identification and multilingual narration server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (overrides CONFIG_PATH)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSeedImagesCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))

	return rootCmd
}
