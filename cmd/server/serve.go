// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guidepost/internal/api"
	"github.com/tomtom215/guidepost/internal/config"
	"github.com/tomtom215/guidepost/internal/imagestore"
	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/pipeline"
	"github.com/tomtom215/guidepost/internal/speech"
	"github.com/tomtom215/guidepost/internal/supervisor"
	"github.com/tomtom215/guidepost/internal/supervisor/services"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API under the supervisor tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

// app is a fully wired server without its lifecycle.
type app struct {
	store   *imagestore.Store
	handler http.Handler
}

// newApp wires every component. The caller owns Close.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tables, err := loadLocales(cfg)
	if err != nil {
		return nil, err
	}

	collabs, err := newCollaborators(cfg, tables)
	if err != nil {
		return nil, err
	}

	store, err := imagestore.Open(imagestore.Config{
		Path:           cfg.Metadata.Path,
		InMemory:       cfg.Metadata.InMemory,
		GCDiscardRatio: cfg.Metadata.GCDiscardRatio,
	})
	if err != nil {
		return nil, err
	}

	if seed := cfg.Metadata.SeedFile; seed != "" {
		n, err := store.Import(ctx, seed)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logging.Info().Str("file", seed).Int("images", n).Msg("Image metadata seeded")
	}

	orchestrator, err := pipeline.New(pipeline.Deps{
		Analyzer:   collabs.vision,
		Resolver:   collabs.search,
		Generator:  collabs.generator,
		Translator: collabs.translator,
		Narrator:   speech.NewNarrator(collabs.speech, cfg.Speech.Timeout, cfg.Speech.OutputFormat),
		Images:     store,
	}, pipeline.Options{
		Locales:            tables,
		ImageLookupTimeout: cfg.Pipeline.ImageLookupTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	handler, err := api.NewHandler(api.HandlerConfig{
		Pipeline:       orchestrator,
		Languages:      collabs.translator,
		Checks:         collabs.readinessChecks(store),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().
			Str("environment", cfg.Server.Environment).
			Msg("CORS allows any origin outside development; set CORS_ORIGINS")
	}

	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security)))

	return &app{store: store, handler: router.SetupChi()}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// runServer blocks until SIGINT, SIGTERM or parent cancellation.
func runServer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Guidepost")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing image store")
		}
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddDataService(services.NewImageStoreGCService(a.store, cfg.Metadata.GCInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Guidepost stopped")
	return nil
}
