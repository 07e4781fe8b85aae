// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guidepost/internal/config"
	"github.com/tomtom215/guidepost/internal/imagestore"
)

func newSeedImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-images <file.yaml>",
		Short: "Import attraction image metadata into the image store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(config.WithoutCollaboratorValidation())
			if err != nil {
				return err
			}
			if cfg.Metadata.InMemory {
				return errors.New("seed-images needs a persistent store; unset METADATA_IN_MEMORY")
			}

			store, err := imagestore.Open(imagestore.Config{
				Path:           cfg.Metadata.Path,
				GCDiscardRatio: cfg.Metadata.GCDiscardRatio,
			})
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d images into %s (%d total)\n", n, cfg.Metadata.Path, total)
			return nil
		},
	}
}
