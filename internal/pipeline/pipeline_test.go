// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/guidepost/internal/locale"
	"github.com/tomtom215/guidepost/internal/narrative"
	"github.com/tomtom215/guidepost/internal/search"
	"github.com/tomtom215/guidepost/internal/speech"
	"github.com/tomtom215/guidepost/internal/translation"
	"github.com/tomtom215/guidepost/internal/vision"
)

type fakeAnalyzer struct {
	label string
	err   error
}

func (f *fakeAnalyzer) Analyze(context.Context, []byte) (string, error) {
	return f.label, f.err
}

type fakeResolver struct {
	docs      []search.Document
	threshold float64
	calls     atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, label string) (*search.Candidate, []search.Document, error) {
	if label == "" {
		return nil, []search.Document{}, nil
	}
	f.calls.Add(1)
	return search.SelectBest(f.docs, f.threshold), f.docs, nil
}

type fakeGenerator struct {
	err   error
	calls atomic.Int32
	hook  func()
}

func (f *fakeGenerator) Generate(_ context.Context, c *search.Candidate) (narrative.Narrative, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return narrative.Narrative{}, f.err
	}
	if c == nil {
		return narrative.NoMatch(), nil
	}
	return narrative.Narrative{
		Kind:          narrative.KindSuccess,
		Text:          "鐘樓建於1915年。",
		SourceLocale:  "zh",
		SourceTitle:   c.Title,
		SourceContent: c.Content,
	}, nil
}

type fakeTranslator struct {
	out      string
	err      error
	calls    atomic.Int32
	lastFrom atomic.Value
}

func (f *fakeTranslator) TryTranslate(_ context.Context, text, source string, _ locale.CanonicalLocale) (string, error) {
	f.calls.Add(1)
	f.lastFrom.Store(source)
	if f.err != nil {
		return text, f.err
	}
	return f.out, nil
}

type fakeNarrator struct {
	err   error
	calls atomic.Int32
	voice atomic.Value
}

func (f *fakeNarrator) Synthesize(_ context.Context, _ string, loc locale.CanonicalLocale) (speech.AudioPayload, error) {
	f.calls.Add(1)
	f.voice.Store(loc.SpeechVoice)
	if f.err != nil {
		return speech.AudioPayload{}, f.err
	}
	return speech.AudioPayload{Content: []byte("mp3"), ContentType: speech.ContentType, DurationMs: 1, SizeBytes: 3}, nil
}

type fakeImages struct {
	url   string
	calls atomic.Int32
	wait  <-chan struct{}
}

func (f *fakeImages) ResolveImageURL(ctx context.Context, _ string) string {
	f.calls.Add(1)
	if f.wait != nil {
		select {
		case <-f.wait:
		case <-ctx.Done():
			return ""
		}
	}
	return f.url
}

type fixture struct {
	analyzer   *fakeAnalyzer
	resolver   *fakeResolver
	generator  *fakeGenerator
	translator *fakeTranslator
	narrator   *fakeNarrator
	images     *fakeImages
}

func newFixture() *fixture {
	return &fixture{
		analyzer: &fakeAnalyzer{label: "Clock Tower"},
		resolver: &fakeResolver{
			docs:      []search.Document{{"title": "Clock Tower", "content_text": "Built in 1915.", "@search.rerankerScore": 4.2}},
			threshold: search.DefaultThreshold,
		},
		generator:  &fakeGenerator{},
		translator: &fakeTranslator{out: "La tour de l'horloge a été construite en 1915."},
		narrator:   &fakeNarrator{},
		images:     &fakeImages{url: "https://img.example.com/clock.jpg"},
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(Deps{
		Analyzer:   f.analyzer,
		Resolver:   f.resolver,
		Generator:  f.generator,
		Translator: f.translator,
		Narrator:   f.narrator,
		Images:     f.images,
	}, Options{ImageLookupTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestAnalyze_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()
	res, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	r := res.Response
	if r.Type != TypeSuccess {
		t.Errorf("Type = %q", r.Type)
	}
	if r.Language != "fr" {
		t.Errorf("Language = %q, want fr", r.Language)
	}
	if r.Text != "La tour de l'horloge a été construite en 1915." {
		t.Errorf("Text = %q", r.Text)
	}
	if r.Audio == nil || r.Audio.ContentType != "audio/mp3" {
		t.Fatalf("Audio = %+v", r.Audio)
	}
	if r.AudioError != "" {
		t.Errorf("AudioError = %q", r.AudioError)
	}
	if r.Source == nil || r.Source.Title != "Clock Tower" || r.Source.Content != "Built in 1915." {
		t.Errorf("Source = %+v", r.Source)
	}
	if res.ImageURL != "https://img.example.com/clock.jpg" || r.ImageURL != res.ImageURL {
		t.Errorf("ImageURL = %q / %q", res.ImageURL, r.ImageURL)
	}
	if len(res.Documents) != 1 {
		t.Errorf("Documents = %d", len(res.Documents))
	}
	if got := f.narrator.voice.Load(); got != "fr-FR-DeniseNeural" {
		t.Errorf("voice = %v, want fr-FR-DeniseNeural", got)
	}
	if got := f.translator.lastFrom.Load(); got != "zh" {
		t.Errorf("translation source = %v, want zh", got)
	}
}

func TestAnalyze_NoLabel(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.analyzer.label = ""

	res, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Response.Type != TypeNoResults || res.Response.Text != narrative.NoMatchText {
		t.Errorf("Response = %+v", res.Response)
	}
	if len(res.Response.Suggestions) != 3 {
		t.Errorf("Suggestions = %v", res.Response.Suggestions)
	}
	if res.Response.Language != "fr" {
		t.Errorf("Language = %q, want requested fr", res.Response.Language)
	}
	if res.Documents == nil || len(res.Documents) != 0 {
		t.Errorf("Documents = %v, want empty list", res.Documents)
	}
	if res.ImageURL != "" {
		t.Errorf("ImageURL = %q", res.ImageURL)
	}
	assertNotCalled(t, f)
}

func TestAnalyze_BelowConfidenceGate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.resolver.docs = []search.Document{{"title": "Maybe", "@search.rerankerScore": 1.999}}

	res, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Response.Type != TypeNoResults {
		t.Errorf("Type = %q", res.Response.Type)
	}
	if res.Response.Language != "zh" {
		t.Errorf("Language = %q, want default zh", res.Response.Language)
	}
	if len(res.Documents) != 1 {
		t.Errorf("raw documents should be kept, got %d", len(res.Documents))
	}
	assertNotCalled(t, f)
}

func assertNotCalled(t *testing.T, f *fixture) {
	t.Helper()
	if f.generator.calls.Load() != 0 {
		t.Error("generator called")
	}
	if f.translator.calls.Load() != 0 {
		t.Error("translator called")
	}
	if f.narrator.calls.Load() != 0 {
		t.Error("narrator called")
	}
	if f.images.calls.Load() != 0 {
		t.Error("image lookup called")
	}
}

func TestAnalyze_AnalysisFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.analyzer.err = vision.ErrAnalysisTimedOut

	_, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageAnalysis {
		t.Fatalf("expected analysis StageError, got %v", err)
	}
	if !errors.Is(err, vision.ErrAnalysisFailure) {
		t.Error("timeout should match ErrAnalysisFailure")
	}
	if f.resolver.calls.Load() != 0 {
		t.Error("search must not run after a failed analysis")
	}
}

func TestAnalyze_GenerationFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.generator.err = narrative.ErrGenerationFailure

	_, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageGeneration {
		t.Fatalf("expected generation StageError, got %v", err)
	}
	if f.translator.calls.Load() != 0 || f.narrator.calls.Load() != 0 {
		t.Error("translation and synthesis must not run after a failed generation")
	}
}

func TestAnalyze_TranslationFailureKeepsText(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.translator.err = translation.ErrTranslationFailure

	res, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Response.Text != "鐘樓建於1915年。" {
		t.Errorf("Text = %q, want untranslated narrative", res.Response.Text)
	}
	if res.Response.Audio == nil {
		t.Error("synthesis should still run on the untranslated text")
	}
}

func TestAnalyze_SynthesisFailureSetsAudioError(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.narrator.err = errors.New("speech synthesis failed: Error - Quota exceeded")

	res, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Response.Audio != nil {
		t.Error("audio should be omitted")
	}
	if res.Response.AudioError != "speech synthesis failed: Error - Quota exceeded" {
		t.Errorf("AudioError = %q", res.Response.AudioError)
	}
	if res.Response.Text == "" || res.Response.Language != "fr" {
		t.Errorf("text and language must be unaffected: %+v", res.Response)
	}
}

type hangingSynth struct{}

func (hangingSynth) Synthesize(ctx context.Context, _ speech.Request) speech.Result {
	<-ctx.Done()
	return speech.Result{Outcome: speech.Errored, Err: ctx.Err()}
}

func TestAnalyze_SynthesisTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture()
	const timeout = 30 * time.Millisecond
	o, err := New(Deps{
		Analyzer:   f.analyzer,
		Resolver:   f.resolver,
		Generator:  f.generator,
		Translator: f.translator,
		Narrator:   speech.NewNarrator(hangingSynth{}, timeout, ""),
		Images:     f.images,
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	res, err := o.Analyze(context.Background(), []byte("jpeg"), "ja")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if elapsed := time.Since(start); elapsed > timeout+time.Second {
		t.Errorf("took %v, want about %v", elapsed, timeout)
	}
	if res.Response.AudioError == "" || res.Response.Audio != nil {
		t.Errorf("expected audioError, got %+v", res.Response)
	}
	if res.Response.Language != "ja" || res.Response.Text == "" {
		t.Errorf("text/language changed: %+v", res.Response)
	}
}

func TestAnalyze_UnsupportedLocaleKeepsText(t *testing.T) {
	t.Parallel()

	f := newFixture()
	o, err := New(Deps{
		Analyzer:   f.analyzer,
		Resolver:   f.resolver,
		Generator:  f.generator,
		Translator: f.translator,
		Narrator:   speech.NewNarrator(hangingSynth{}, time.Second, ""),
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Analyze(context.Background(), []byte("jpeg"), "tlh")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Response.AudioError == "" {
		t.Error("expected audioError for a locale without a voice")
	}
	if res.ImageURL != "" {
		t.Errorf("no image resolver configured, got %q", res.ImageURL)
	}
}

func TestAnalyze_ImageLookupRunsConcurrently(t *testing.T) {
	t.Parallel()

	f := newFixture()
	generated := make(chan struct{})
	f.generator.hook = func() { close(generated) }
	f.images.wait = generated

	res, err := f.orchestrator(t).Analyze(context.Background(), []byte("jpeg"), "fr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ImageURL != "https://img.example.com/clock.jpg" {
		t.Errorf("ImageURL = %q; lookup should overlap with generation", res.ImageURL)
	}
}

func TestAnalyze_ImageLookupTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.images.wait = make(chan struct{})
	o, err := New(Deps{
		Analyzer:   f.analyzer,
		Resolver:   f.resolver,
		Generator:  f.generator,
		Translator: f.translator,
		Narrator:   f.narrator,
		Images:     f.images,
	}, Options{ImageLookupTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Analyze(context.Background(), []byte("jpeg"), "fr")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ImageURL != "" || res.Response.Type != TypeSuccess {
		t.Errorf("slow lookup should degrade to no image, got %+v", res)
	}
}

func TestRetell(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.translator.out = "Hello"

	res, err := f.orchestrator(t).Retell(context.Background(), "你好", "", "en")
	if err != nil {
		t.Fatalf("Retell: %v", err)
	}
	if res.Text != "Hello" || res.Language != "en" || res.Audio == nil {
		t.Errorf("Retell = %+v", res)
	}
	if got := f.narrator.voice.Load(); got != "en-US-AriaNeural" {
		t.Errorf("voice = %v", got)
	}
	if f.resolver.calls.Load() != 0 {
		t.Error("retell must not search")
	}

	f.narrator.err = speech.ErrSpeechTimeout
	res, err = f.orchestrator(t).Retell(context.Background(), "你好", "zh", "en")
	if err != nil {
		t.Fatalf("Retell: %v", err)
	}
	if res.Audio != nil || res.AudioError == "" {
		t.Errorf("expected audioError, got %+v", res)
	}
}

func TestRetell_CanceledContext(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.orchestrator(t).Retell(ctx, "你好", "", "en"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}, Options{}); err == nil {
		t.Error("expected error")
	}
	f := newFixture()
	if _, err := New(Deps{Analyzer: f.analyzer, Resolver: f.resolver, Generator: f.generator, Translator: f.translator}, Options{}); err == nil {
		t.Error("expected error without narrator")
	}
}

func TestStageError(t *testing.T) {
	t.Parallel()

	err := &StageError{Stage: StageGeneration, Err: narrative.ErrGenerationFailure}
	if err.Error() != "generation stage: narrative generation failed" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, narrative.ErrGenerationFailure) {
		t.Error("Unwrap should expose the cause")
	}
}
