// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package translation translates narratives and serves the translator's
// language catalog.
package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/guidepost/internal/locale"
	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/remote"
)

// ServiceName labels this collaborator in metrics and logs.
const ServiceName = "translator"

const apiVersion = "3.0"

// ErrTranslationFailure is reported when a translation could not be produced.
// It never aborts a pipeline: callers fall back to the untranslated text.
var ErrTranslationFailure = errors.New("translation failed")

// Config configures a Translator.
type Config struct {
	Endpoint          string
	APIKey            string
	Region            string
	Timeout           time.Duration
	RequestsPerSecond float64

	// CatalogTTL is how long the language catalog is served from memory.
	CatalogTTL time.Duration

	// DefaultSource is used when the caller gives no source hint.
	DefaultSource string

	HTTPClient *http.Client
}

type translateItem struct {
	Text string `json:"Text"`
}

type translateResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// Translator calls the text translation service. Safe for concurrent use.
type Translator struct {
	http          *remote.Client
	defaultSource string
	catalogTTL    time.Duration
	now           func() time.Time

	refresh singleflight.Group
	mu      sync.RWMutex
	catalog *Catalog
}

// New creates a Translator.
func New(cfg Config) (*Translator, error) {
	header := http.Header{"Ocp-Apim-Subscription-Key": []string{cfg.APIKey}}
	if cfg.Region != "" {
		header.Set("Ocp-Apim-Subscription-Region", cfg.Region)
	}
	rc, err := remote.New(remote.Options{
		Service:           ServiceName,
		BaseURL:           cfg.Endpoint,
		Header:            header,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        1,
		HTTPClient:        cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	source := cfg.DefaultSource
	if source == "" {
		source = "zh"
	}
	ttl := cfg.CatalogTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Translator{
		http:          rc,
		defaultSource: source,
		catalogTTL:    ttl,
		now:           time.Now,
	}, nil
}

// BreakerState reports the circuit breaker state.
func (t *Translator) BreakerState() string {
	return t.http.BreakerState()
}

// Translate returns text in the target locale, or text unchanged when the
// translation fails. Failures are logged.
func (t *Translator) Translate(ctx context.Context, text, sourceHint string, target locale.CanonicalLocale) string {
	out, err := t.TryTranslate(ctx, text, sourceHint, target)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("to", target.TranslationCode).
			Msg("Translation failed, keeping original text")
	}
	return out
}

// TryTranslate is Translate that also reports the failure. The returned text
// is always usable: on error it is the input.
func (t *Translator) TryTranslate(ctx context.Context, text, sourceHint string, target locale.CanonicalLocale) (string, error) {
	source := sourceHint
	if source == "" {
		source = t.defaultSource
	}
	if text == "" {
		return text, nil
	}
	to := t.targetCode(ctx, target.TranslationCode)
	if SameLanguage(source, to) {
		return text, nil
	}

	req := remote.Request{
		Method: http.MethodPost,
		Path:   "/translate",
		Query: url.Values{
			"api-version": {apiVersion},
			"from":        {source},
			"to":          {to},
		},
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header = http.Header{"X-ClientTraceId": []string{id}}
	}

	var results []translateResult
	if _, err := t.http.DoJSONRequest(ctx, req, []translateItem{{Text: text}}, &results); err != nil {
		return text, fmt.Errorf("%w: %w", ErrTranslationFailure, err)
	}
	if len(results) == 0 || len(results[0].Translations) == 0 || results[0].Translations[0].Text == "" {
		return text, fmt.Errorf("%w: empty response", ErrTranslationFailure)
	}
	return results[0].Translations[0].Text, nil
}

// targetCode resolves a tagged code against the language catalog. Plain
// codes skip the lookup. Without a catalog the code is sent as given.
func (t *Translator) targetCode(ctx context.Context, code string) string {
	if !strings.Contains(code, "-") {
		return code
	}
	cat, err := t.Languages(ctx)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("to", code).Msg("Language catalog unavailable, sending target as given")
		return code
	}
	if mapped, ok := cat.Target(code); ok {
		return mapped
	}
	return code
}

// SameLanguage reports whether translating from source to target is a no-op.
func SameLanguage(source, target string) bool {
	return strings.EqualFold(strings.TrimSpace(source), strings.TrimSpace(target))
}
