// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package search

import (
	"context"
	"strings"

	"github.com/tomtom215/guidepost/internal/logging"
)

// Resolve finds the candidate for an identified label.
//
// An empty label returns no candidate without querying. A query failure is
// logged and treated as "no candidate" with an empty document list. The
// returned documents are the raw hits, including ones below the gate.
func (c *Client) Resolve(ctx context.Context, label string) (*Candidate, []Document, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, []Document{}, nil
	}

	docs, err := c.Query(ctx, label)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		logging.Ctx(ctx).Warn().Err(err).Str("service", ServiceName).Msg("Search failed, continuing without a candidate")
		return nil, []Document{}, nil
	}

	best := SelectBest(docs, c.threshold)
	if best == nil {
		c.logger.Debug().Int("hits", len(docs)).Float64("threshold", c.threshold).Msg("No hit cleared the confidence gate")
	}
	return best, docs, nil
}

// SelectBest returns the highest-scoring document as a Candidate when its score
// is at least threshold. The first document wins ties.
func SelectBest(docs []Document, threshold float64) *Candidate {
	var (
		top      Document
		topScore float64
		found    bool
	)
	for _, doc := range docs {
		score, ok := Score(doc)
		if !ok {
			continue
		}
		if !found || score > topScore {
			top, topScore, found = doc, score, true
		}
	}
	if !found || topScore < threshold {
		return nil
	}
	return &Candidate{
		Title:    stringField(top, FieldTitle),
		Content:  stringField(top, FieldContent),
		ImageURL: stringField(top, FieldImageURL),
		Score:    topScore,
	}
}

// Score reads the reranker score when present, else the base search score.
func Score(doc Document) (float64, bool) {
	if s, ok := numberField(doc, fieldRerankerScore); ok {
		return s, true
	}
	return numberField(doc, fieldScore)
}

func numberField(doc Document, key string) (float64, bool) {
	switch v := doc[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringField(doc Document, key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}
