// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package translation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
	"github.com/tomtom215/guidepost/internal/remote"
)

// LanguageInfo describes one translation target.
type LanguageInfo struct {
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
	Dir        string `json:"dir"`
}

// Catalog is the translator's list of supported targets.
type Catalog struct {
	Translation map[string]LanguageInfo `json:"translation"`

	raw       []byte
	fetchedAt time.Time
}

// Raw returns the response body exactly as the translator sent it.
func (c *Catalog) Raw() []byte {
	return c.raw
}

// FetchedAt reports when the catalog was retrieved.
func (c *Catalog) FetchedAt() time.Time {
	return c.fetchedAt
}

// Supports reports whether code is a translation target, ignoring case.
func (c *Catalog) Supports(code string) bool {
	if _, ok := c.Translation[code]; ok {
		return true
	}
	for k := range c.Translation {
		if strings.EqualFold(k, code) {
			return true
		}
	}
	return false
}

// Target maps a locale code onto a catalog target. A code the catalog lacks
// falls back to its base subtag, so en-US becomes en while zh-Hant is kept.
func (c *Catalog) Target(code string) (string, bool) {
	if c.Supports(code) {
		return code, true
	}
	if base, _, found := strings.Cut(code, "-"); found && c.Supports(base) {
		return base, true
	}
	return "", false
}

// ParseCatalog decodes a languages response, keeping the raw body for passthrough.
func ParseCatalog(raw []byte, fetchedAt time.Time) (*Catalog, error) {
	cat := &Catalog{raw: raw, fetchedAt: fetchedAt}
	if err := json.Unmarshal(raw, cat); err != nil {
		return nil, fmt.Errorf("decode language catalog: %w", err)
	}
	if len(cat.Translation) == 0 {
		return nil, fmt.Errorf("language catalog has no translation section")
	}
	return cat, nil
}

const catalogKey = "languages"

// Languages returns the catalog, fetching it at most once per TTL. Concurrent
// callers share one fetch. When a refresh fails and an older catalog exists,
// the older catalog is served.
func (t *Translator) Languages(ctx context.Context) (*Catalog, error) {
	if cat := t.cached(false); cat != nil {
		return cat, nil
	}

	// The shared fetch must not be canceled by whichever caller started it.
	ch := t.refresh.DoChan(catalogKey, func() (interface{}, error) {
		if cat := t.cached(false); cat != nil {
			return cat, nil
		}
		return t.fetchCatalog(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if stale := t.cached(true); stale != nil {
				logging.Ctx(ctx).Warn().Err(res.Err).Time("fetched_at", stale.fetchedAt).Msg("Language catalog refresh failed, serving stale copy")
				return stale, nil
			}
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

func (t *Translator) cached(allowStale bool) *Catalog {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.catalog == nil {
		return nil
	}
	if allowStale || t.now().Sub(t.catalog.fetchedAt) < t.catalogTTL {
		return t.catalog
	}
	return nil
}

func (t *Translator) fetchCatalog(ctx context.Context) (*Catalog, error) {
	resp, err := t.http.Do(ctx, remote.Request{
		Method: http.MethodGet,
		Path:   "/languages",
		Query:  url.Values{"api-version": {apiVersion}, "scope": {"translation"}},
	})
	if err != nil {
		metrics.RecordCatalogRefresh(err)
		return nil, fmt.Errorf("fetch language catalog: %w", err)
	}

	cat, err := ParseCatalog(resp.Body, t.now())
	metrics.RecordCatalogRefresh(err)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.catalog = cat
	t.mu.Unlock()
	return cat, nil
}
