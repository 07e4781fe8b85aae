// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package pipeline

import (
	"fmt"

	"github.com/tomtom215/guidepost/internal/search"
	"github.com/tomtom215/guidepost/internal/speech"
)

// Stage names a pipeline step in errors and metrics.
type Stage string

const (
	StageAnalysis    Stage = "analysis"
	StageSearch      Stage = "search"
	StageGeneration  Stage = "generation"
	StageTranslation Stage = "translation"
	StageSynthesis   Stage = "synthesis"
	StageImageLookup Stage = "image_lookup"
)

// StageError is a fatal failure of one stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result types.
const (
	TypeSuccess   = "success"
	TypeNoResults = "no_results"
)

// Source is the knowledge-base entry a narrative was written from.
type Source struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Audio is the wire form of a synthesized payload. Content is base64 in JSON.
type Audio struct {
	Content     []byte `json:"content"`
	ContentType string `json:"contentType"`
	Duration    int64  `json:"duration"`
	Size        int    `json:"size"`
}

func audioFrom(p speech.AudioPayload) *Audio {
	return &Audio{
		Content:     p.Content,
		ContentType: p.ContentType,
		Duration:    p.DurationMs,
		Size:        p.SizeBytes,
	}
}

// Result is the narration returned to the client. Text and Language are always set;
// audio and image are best-effort.
type Result struct {
	Type        string   `json:"type"`
	Text        string   `json:"text"`
	Language    string   `json:"language"`
	Source      *Source  `json:"source,omitempty"`
	Audio       *Audio   `json:"audio,omitempty"`
	AudioError  string   `json:"audioError,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// AnalyzeResult is the outcome of Analyze.
type AnalyzeResult struct {
	// Documents are the raw search hits; empty when no search ran.
	Documents []search.Document
	Response  Result
	// ImageURL is "" when no image is known.
	ImageURL string
}

// RetellResult is the outcome of Retell.
type RetellResult struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	Audio      *Audio `json:"audio,omitempty"`
	AudioError string `json:"audioError,omitempty"`
}
