// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/guidepost/internal/pipeline"
	"github.com/tomtom215/guidepost/internal/translation"
)

// Pipeline runs narration requests. *pipeline.Orchestrator implements it.
type Pipeline interface {
	Analyze(ctx context.Context, image []byte, language string) (*pipeline.AnalyzeResult, error)
	Retell(ctx context.Context, text, sourceHint, language string) (*pipeline.RetellResult, error)
}

// LanguageCatalog serves the translator's supported languages.
type LanguageCatalog interface {
	Languages(ctx context.Context) (*translation.Catalog, error)
}

// DefaultMaxUploadBytes applies when HandlerConfig.MaxUploadBytes is zero.
const DefaultMaxUploadBytes = 10 << 20

// HandlerConfig holds the dependencies of a Handler.
type HandlerConfig struct {
	Pipeline       Pipeline
	Languages      LanguageCatalog
	Checks         []HealthCheck
	MaxUploadBytes int64
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_analyze.go: image upload and full pipeline
//   - handlers_translate.go: retelling an existing narrative in another language
//   - handlers_languages.go: language catalog passthrough
//   - handlers_health.go: liveness and readiness probes
type Handler struct {
	pipeline       Pipeline
	languages      LanguageCatalog
	checks         []HealthCheck
	maxUploadBytes int64
	startTime      time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("api: pipeline is required")
	}
	if cfg.Languages == nil {
		return nil, errors.New("api: language catalog is required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		pipeline:       cfg.Pipeline,
		languages:      cfg.Languages,
		checks:         cfg.Checks,
		maxUploadBytes: maxUpload,
		startTime:      time.Now(),
	}, nil
}
