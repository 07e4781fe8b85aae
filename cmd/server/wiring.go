// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/guidepost/internal/api"
	"github.com/tomtom215/guidepost/internal/config"
	"github.com/tomtom215/guidepost/internal/imagestore"
	"github.com/tomtom215/guidepost/internal/locale"
	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/narrative"
	"github.com/tomtom215/guidepost/internal/search"
	"github.com/tomtom215/guidepost/internal/speech"
	"github.com/tomtom215/guidepost/internal/translation"
	"github.com/tomtom215/guidepost/internal/vision"
)

// probeTimeout bounds each readiness and check probe.
const probeTimeout = 5 * time.Second

// collaborators are the clients of the external AI services.
type collaborators struct {
	vision     *vision.Client
	search     *search.Client
	generator  *narrative.Generator
	translator *translation.Translator
	speech     *speech.Client
}

// loadLocales reads the operator table when configured and applies the
// default request language.
func loadLocales(cfg *config.Config) (*locale.Table, error) {
	tables := locale.Default()
	if path := cfg.Locale.TablesFile; path != "" {
		loaded, err := locale.LoadFile(path)
		if err != nil {
			return nil, err
		}
		tables = loaded
	}
	tables = tables.WithDefault(cfg.Pipeline.DefaultLanguage)

	logging.Info().
		Int("version", tables.Version()).
		Int("voices", tables.VoiceCount()).
		Str("source_language", tables.SourceLanguage()).
		Str("default_language", tables.DefaultLanguage()).
		Msg("Locale tables loaded")
	return tables, nil
}

func newCollaborators(cfg *config.Config, tables *locale.Table) (*collaborators, error) {
	visionClient, err := vision.New(vision.Config{
		Endpoint:          cfg.Vision.Endpoint,
		APIKey:            cfg.Vision.APIKey,
		APIVersion:        cfg.Vision.APIVersion,
		Timeout:           cfg.Vision.Timeout,
		RequestsPerSecond: cfg.Vision.RequestsPerSecond,
		PollInterval:      cfg.Pipeline.PollInterval,
		PollMaxAttempts:   cfg.Pipeline.PollMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	searchClient, err := search.New(search.Config{
		Endpoint:              cfg.Search.Endpoint,
		Index:                 cfg.Search.Index,
		APIKey:                cfg.Search.APIKey,
		APIVersion:            cfg.Search.APIVersion,
		SemanticConfiguration: cfg.Search.SemanticConfiguration,
		Top:                   cfg.Search.Top,
		Timeout:               cfg.Search.Timeout,
		RequestsPerSecond:     cfg.Search.RequestsPerSecond,
		Threshold:             cfg.Pipeline.ConfidenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	generator, err := narrative.New(narrative.Config{
		Endpoint:          cfg.LLM.Endpoint,
		APIKey:            cfg.LLM.APIKey,
		APIVersion:        cfg.LLM.APIVersion,
		Deployment:        cfg.LLM.Deployment,
		Temperature:       cfg.LLM.Temperature,
		MaxRetries:        cfg.LLM.MaxRetries,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		SourceLocale:      tables.SourceLanguage(),
	})
	if err != nil {
		return nil, fmt.Errorf("narrative generator: %w", err)
	}

	translator, err := translation.New(translation.Config{
		Endpoint:          cfg.Translator.Endpoint,
		APIKey:            cfg.Translator.APIKey,
		Region:            cfg.Translator.Region,
		Timeout:           cfg.Translator.Timeout,
		RequestsPerSecond: cfg.Translator.RequestsPerSecond,
		CatalogTTL:        cfg.Translator.CatalogTTL,
		DefaultSource:     tables.SourceLanguage(),
	})
	if err != nil {
		return nil, fmt.Errorf("translator: %w", err)
	}

	speechClient, err := speech.New(speech.Config{
		Region:            cfg.Speech.Region,
		APIKey:            cfg.Speech.APIKey,
		Endpoint:          cfg.Speech.Endpoint,
		Timeout:           cfg.Speech.Timeout,
		RequestsPerSecond: cfg.Speech.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &collaborators{
		vision:     visionClient,
		search:     searchClient,
		generator:  generator,
		translator: translator,
		speech:     speechClient,
	}, nil
}

// readinessChecks are served by /api/health/ready. Only the image store is
// critical: without speech or the catalog the API still answers with text.
func (c *collaborators) readinessChecks(store *imagestore.Store) []api.HealthCheck {
	return []api.HealthCheck{
		{Name: "image_store", Critical: true, Timeout: probeTimeout, Probe: store.Ping},
		{Name: "speech_voices", Timeout: probeTimeout, Probe: c.probeVoices},
		{Name: "translator_catalog", Timeout: probeTimeout, Probe: c.probeCatalog},
	}
}

// connectivityChecks cover every collaborator for the check command. All are critical.
func (c *collaborators) connectivityChecks() []api.HealthCheck {
	return []api.HealthCheck{
		{Name: "vision", Critical: true, Timeout: probeTimeout, Probe: c.vision.Ping},
		{Name: "search", Critical: true, Timeout: probeTimeout, Probe: c.search.Ping},
		{Name: "llm", Critical: true, Timeout: probeTimeout, Probe: c.generator.Ping},
		{Name: "translator_catalog", Critical: true, Timeout: probeTimeout, Probe: c.probeCatalog},
		{Name: "speech_voices", Critical: true, Timeout: probeTimeout, Probe: c.probeVoices},
	}
}

func (c *collaborators) probeVoices(ctx context.Context) error {
	n, err := c.speech.Voices(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("speech service lists no voices")
	}
	return nil
}

func (c *collaborators) probeCatalog(ctx context.Context) error {
	_, err := c.translator.Languages(ctx)
	return err
}
