// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package narrative turns a matched knowledge-base entry into tour-guide prose
// with a chat completion deployment.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/remote"
	"github.com/tomtom215/guidepost/internal/search"
)

// ServiceName labels this collaborator in metrics and logs.
const ServiceName = "llm"

// ErrGenerationFailure means no narrative could be produced for a matched candidate.
var ErrGenerationFailure = errors.New("narrative generation failed")

// Kind distinguishes a generated narrative from the no-match reply.
type Kind string

const (
	KindSuccess   Kind = "success"
	KindNoResults Kind = "no_results"
)

// Fixed texts of the no-match reply and the prompt.
const (
	NoMatchText = "很抱歉，我無法識別這個景點或找到相關資訊。請嘗試提供更清楚的照片或詳細描述。"

	systemPrompt = "你是一個資深導遊，擅長提供旅遊建議和景點資訊。"

	unknownTitle = "未知景點"
)

// NoMatchSuggestions are remedial actions offered with the no-match reply.
var NoMatchSuggestions = []string{"拍攝更清楚的照片", "提供景點名稱", "描述周邊環境特徵"}

// Narrative is generated text plus its provenance.
type Narrative struct {
	Kind          Kind
	Text          string
	SourceLocale  string
	SourceTitle   string
	SourceContent string
	Suggestions   []string
}

// Config configures a Generator.
type Config struct {
	Endpoint          string
	APIKey            string
	APIVersion        string
	Deployment        string
	Temperature       float64
	MaxRetries        int
	Timeout           time.Duration
	RequestsPerSecond float64

	// SourceLocale is the language the prompt makes the model write in.
	SourceLocale string

	HTTPClient *http.Client

	// RetryBaseDelay shortens backoff in tests.
	RetryBaseDelay time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generator produces narratives. Safe for concurrent use.
type Generator struct {
	http *remote.Client
	cfg  Config
}

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("%s: deployment is required", ServiceName)
	}
	rc, err := remote.New(remote.Options{
		Service:           ServiceName,
		BaseURL:           cfg.Endpoint,
		Header:            http.Header{"Api-Key": []string{cfg.APIKey}},
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		HTTPClient:        cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	if cfg.SourceLocale == "" {
		cfg.SourceLocale = "zh"
	}
	return &Generator{http: rc, cfg: cfg}, nil
}

// BreakerState reports the circuit breaker state.
func (g *Generator) BreakerState() string {
	return g.http.BreakerState()
}

// Ping checks that the endpoint answers.
func (g *Generator) Ping(ctx context.Context) error {
	return g.http.Ping(ctx)
}

// NoMatch returns the fixed reply used when nothing was identified.
func NoMatch() Narrative {
	suggestions := make([]string, len(NoMatchSuggestions))
	copy(suggestions, NoMatchSuggestions)
	return Narrative{
		Kind:        KindNoResults,
		Text:        NoMatchText,
		Suggestions: suggestions,
	}
}

// Generate writes a narrative about candidate. A nil candidate yields NoMatch.
// Throttling and server errors are retried; the final failure wraps ErrGenerationFailure.
func (g *Generator) Generate(ctx context.Context, candidate *search.Candidate) (Narrative, error) {
	if candidate == nil {
		return NoMatch(), nil
	}

	req := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(candidate)},
		},
		Temperature: g.cfg.Temperature,
	}

	var resp chatResponse
	_, err := g.http.DoJSON(ctx, http.MethodPost,
		"/openai/deployments/"+url.PathEscape(g.cfg.Deployment)+"/chat/completions",
		url.Values{"api-version": {g.cfg.APIVersion}},
		req, &resp)
	if err != nil {
		return Narrative{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	if len(resp.Choices) == 0 {
		return Narrative{}, fmt.Errorf("%w: response has no choices", ErrGenerationFailure)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Narrative{}, fmt.Errorf("%w: empty completion (finish reason %q)", ErrGenerationFailure, resp.Choices[0].FinishReason)
	}

	title := candidate.Title
	if title == "" {
		title = unknownTitle
	}

	logging.Ctx(ctx).Debug().
		Str("title", title).
		Int("text_length", len(text)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("Narrative generated")

	return Narrative{
		Kind:          KindSuccess,
		Text:          text,
		SourceLocale:  g.cfg.SourceLocale,
		SourceTitle:   title,
		SourceContent: candidate.Content,
	}, nil
}

// BuildPrompt asks for fluent prose covering name, history, description and
// opening hours, plus a source line when the entry carries an image URL.
func BuildPrompt(candidate *search.Candidate) string {
	var b strings.Builder
	b.WriteString(candidate.Content)
	b.WriteString("。\n根據以上資料，生成結果為一段文字敘述，內容必須包含:\n")
	b.WriteString("1.景點名稱(name)\n")
	b.WriteString("2.景點歷史(history)\n")
	b.WriteString("3.景點描述(description)\n")
	b.WriteString("4.景點開放時間(opening_hours)\n")
	if candidate.ImageURL != "" {
		b.WriteString("5.在結尾加上一行資料來源(source)：")
		b.WriteString(candidate.ImageURL)
		b.WriteString("\n")
	}
	b.WriteString("並確保文字敘述流暢、通順。")
	return b.String()
}
