// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package pipeline sequences identification, retrieval, generation,
// translation and synthesis for one request and applies the partial-failure
// policy: analysis and generation failures abort, everything after them degrades.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/guidepost/internal/locale"
	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
	"github.com/tomtom215/guidepost/internal/narrative"
	"github.com/tomtom215/guidepost/internal/search"
	"github.com/tomtom215/guidepost/internal/speech"
)

// Analyzer identifies the landmark in an image. "" means nothing was identified.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (string, error)
}

// CandidateResolver finds the knowledge-base entry for a label.
type CandidateResolver interface {
	Resolve(ctx context.Context, label string) (*search.Candidate, []search.Document, error)
}

// Generator writes the narrative.
type Generator interface {
	Generate(ctx context.Context, candidate *search.Candidate) (narrative.Narrative, error)
}

// Translator translates text, returning usable text even on error.
type Translator interface {
	TryTranslate(ctx context.Context, text, sourceHint string, target locale.CanonicalLocale) (string, error)
}

// Narrator synthesizes audio.
type Narrator interface {
	Synthesize(ctx context.Context, text string, loc locale.CanonicalLocale) (speech.AudioPayload, error)
}

// ImageResolver maps an attraction title to an image URL ("" when unknown).
type ImageResolver interface {
	ResolveImageURL(ctx context.Context, title string) string
}

// Deps are the collaborators of an Orchestrator. Images may be nil.
type Deps struct {
	Analyzer   Analyzer
	Resolver   CandidateResolver
	Generator  Generator
	Translator Translator
	Narrator   Narrator
	Images     ImageResolver
}

// Options tune an Orchestrator.
type Options struct {
	// Locales maps requested languages; nil uses the embedded table.
	Locales *locale.Table

	// ImageLookupTimeout bounds the image branch (default 5s).
	ImageLookupTimeout time.Duration
}

// Orchestrator runs pipelines. Safe for concurrent use; each call is independent.
type Orchestrator struct {
	deps         Deps
	locales      *locale.Table
	imageTimeout time.Duration
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case deps.Resolver == nil:
		return nil, errors.New("pipeline: candidate resolver is required")
	case deps.Generator == nil:
		return nil, errors.New("pipeline: generator is required")
	case deps.Translator == nil:
		return nil, errors.New("pipeline: translator is required")
	case deps.Narrator == nil:
		return nil, errors.New("pipeline: narrator is required")
	}

	tables := opts.Locales
	if tables == nil {
		tables = locale.Default()
	}
	timeout := opts.ImageLookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Orchestrator{deps: deps, locales: tables, imageTimeout: timeout}, nil
}

// Locales returns the locale table in use.
func (o *Orchestrator) Locales() *locale.Table {
	return o.locales
}

// Analyze runs the full pipeline for an uploaded image. The returned error is a
// *StageError for the analysis and generation stages; every other failure
// degrades a field of the result.
func (o *Orchestrator) Analyze(ctx context.Context, image []byte, language string) (*AnalyzeResult, error) {
	requested := o.requestedLanguage(language)
	log := logging.Ctx(ctx)

	var label string
	err := o.stage(StageAnalysis, func() (err error) {
		label, err = o.deps.Analyzer.Analyze(ctx, image)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: StageAnalysis, Err: err}
	}

	var (
		candidate *search.Candidate
		documents []search.Document
	)
	err = o.stage(StageSearch, func() (err error) {
		candidate, documents, err = o.deps.Resolver.Resolve(ctx, label)
		return err
	})
	if err != nil {
		// Only caller cancellation surfaces here; search failures resolve to no candidate.
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	if documents == nil {
		documents = []search.Document{}
	}

	if candidate == nil {
		log.Info().Bool("identified", label != "").Int("hits", len(documents)).Msg("No candidate, returning no-match narrative")
		o.skip(StageGeneration, StageTranslation, StageSynthesis, StageImageLookup)
		metrics.RecordPipelineResult(TypeNoResults)
		return &AnalyzeResult{
			Documents: documents,
			Response:  noMatchResult(requested),
		}, nil
	}

	// The image branch is independent of the narration stages.
	imageURL := o.lookupImage(ctx, candidate.Title)

	var story narrative.Narrative
	err = o.stage(StageGeneration, func() (err error) {
		story, err = o.deps.Generator.Generate(ctx, candidate)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: StageGeneration, Err: err}
	}
	if story.Kind == narrative.KindNoResults {
		o.skip(StageTranslation, StageSynthesis)
		metrics.RecordPipelineResult(TypeNoResults)
		return &AnalyzeResult{Documents: documents, Response: noMatchResult(requested), ImageURL: <-imageURL}, nil
	}

	text, audio, audioErr := o.narrate(ctx, story.Text, story.SourceLocale, requested)

	result := Result{
		Type:     TypeSuccess,
		Text:     text,
		Language: requested,
		Source:   &Source{Title: story.SourceTitle, Content: story.SourceContent},
		Audio:    audio,
	}
	if audioErr != nil {
		result.AudioError = audioErr.Error()
	}
	result.ImageURL = <-imageURL

	metrics.RecordPipelineResult(TypeSuccess)
	log.Info().
		Str("title", story.SourceTitle).
		Str("language", requested).
		Bool("audio", audio != nil).
		Bool("image", result.ImageURL != "").
		Msg("Pipeline completed")

	return &AnalyzeResult{Documents: documents, Response: result, ImageURL: result.ImageURL}, nil
}

// Retell translates text and voices it without re-analysis. Translation and
// synthesis failures degrade the result; Retell itself only fails when ctx ends.
func (o *Orchestrator) Retell(ctx context.Context, text, sourceHint, language string) (*RetellResult, error) {
	requested := o.requestedLanguage(language)
	out, audio, audioErr := o.narrate(ctx, text, sourceHint, requested)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &RetellResult{Text: out, Language: requested, Audio: audio}
	if audioErr != nil {
		res.AudioError = audioErr.Error()
	}
	return res, nil
}

// narrate runs translation then synthesis. The text is always usable.
func (o *Orchestrator) narrate(ctx context.Context, text, sourceHint, requested string) (string, *Audio, error) {
	loc := o.locales.Normalize(requested)
	if sourceHint == "" {
		sourceHint = o.locales.SourceLanguage()
	}

	translated := text
	_ = o.stage(StageTranslation, func() error {
		out, err := o.deps.Translator.TryTranslate(ctx, text, sourceHint, loc)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("to", loc.TranslationCode).Msg("Translation failed, keeping original text")
		}
		if strings.TrimSpace(out) != "" {
			translated = out
		}
		return err
	})

	var payload speech.AudioPayload
	err := o.stage(StageSynthesis, func() (err error) {
		payload, err = o.deps.Narrator.Synthesize(ctx, translated, loc)
		return err
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("voice", loc.SpeechVoice).Msg("Speech synthesis failed, returning text only")
		return translated, nil, err
	}
	return translated, audioFrom(payload), nil
}

// lookupImage starts the image branch and returns a channel carrying its URL.
func (o *Orchestrator) lookupImage(ctx context.Context, title string) <-chan string {
	out := make(chan string, 1)
	if o.deps.Images == nil {
		metrics.RecordStageSkipped(string(StageImageLookup))
		out <- ""
		return out
	}

	go func() {
		lookupCtx, cancel := context.WithTimeout(ctx, o.imageTimeout)
		defer cancel()

		start := time.Now()
		url := o.deps.Images.ResolveImageURL(lookupCtx, title)
		metrics.RecordStage(string(StageImageLookup), time.Since(start), nil)
		out <- url
	}()
	return out
}

func (o *Orchestrator) stage(s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStage(string(s), time.Since(start), err)
	return err
}

func (o *Orchestrator) skip(stages ...Stage) {
	for _, s := range stages {
		metrics.RecordStageSkipped(string(s))
	}
}

func (o *Orchestrator) requestedLanguage(language string) string {
	if trimmed := strings.TrimSpace(language); trimmed != "" {
		return trimmed
	}
	return o.locales.DefaultLanguage()
}

func noMatchResult(language string) Result {
	nm := narrative.NoMatch()
	return Result{
		Type:        TypeNoResults,
		Text:        nm.Text,
		Language:    language,
		Suggestions: nm.Suggestions,
	}
}
