// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package search queries the attraction index and picks the single candidate
// whose relevance clears the confidence gate.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/remote"
)

// ServiceName labels this collaborator in metrics and logs.
const ServiceName = "search"

// Index document fields.
const (
	FieldTitle         = "title"
	FieldContent       = "content_text"
	FieldImageURL      = "image_url"
	fieldScore         = "@search.score"
	fieldRerankerScore = "@search.rerankerScore"
)

// DefaultThreshold is the minimum accepted score on the semantic reranker scale (0 to 4).
const DefaultThreshold = 2.0

// Document is one raw index hit, passed through to API clients unchanged.
type Document map[string]interface{}

// Candidate is the knowledge-base entry selected for narration.
type Candidate struct {
	Title    string
	Content  string
	ImageURL string
	Score    float64
}

// Config configures a Client.
type Config struct {
	Endpoint              string
	Index                 string
	APIKey                string
	APIVersion            string
	SemanticConfiguration string
	Top                   int
	Timeout               time.Duration
	RequestsPerSecond     float64

	// Threshold is the inclusive confidence gate.
	Threshold float64

	HTTPClient *http.Client
}

type searchRequest struct {
	Search                string `json:"search"`
	Top                   int    `json:"top"`
	QueryType             string `json:"queryType,omitempty"`
	SemanticConfiguration string `json:"semanticConfiguration,omitempty"`
	Select                string `json:"select"`
}

type searchResponse struct {
	Value []Document `json:"value"`
}

// Client runs semantic queries against one index. Safe for concurrent use.
type Client struct {
	http      *remote.Client
	cfg       Config
	threshold float64
	logger    zerolog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("%s: index name is required", ServiceName)
	}
	rc, err := remote.New(remote.Options{
		Service:           ServiceName,
		BaseURL:           cfg.Endpoint,
		Header:            http.Header{"Api-Key": []string{cfg.APIKey}},
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        2,
		HTTPClient:        cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Top < 1 {
		cfg.Top = 5
	}
	return &Client{
		http:      rc,
		cfg:       cfg,
		threshold: cfg.Threshold,
		logger:    logging.WithComponent("search"),
	}, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.http.BreakerState()
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Ping(ctx)
}

// Query returns the ranked hits for text.
func (c *Client) Query(ctx context.Context, text string) ([]Document, error) {
	body := searchRequest{
		Search: text,
		Top:    c.cfg.Top,
		Select: FieldTitle + "," + FieldContent + "," + FieldImageURL,
	}
	if c.cfg.SemanticConfiguration != "" {
		body.QueryType = "semantic"
		body.SemanticConfiguration = c.cfg.SemanticConfiguration
	}

	var out searchResponse
	_, err := c.http.DoJSON(ctx, http.MethodPost,
		"/indexes/"+url.PathEscape(c.cfg.Index)+"/docs/search",
		url.Values{"api-version": {c.cfg.APIVersion}},
		body, &out)
	if err != nil {
		return nil, err
	}
	if out.Value == nil {
		out.Value = []Document{}
	}
	return out.Value, nil
}
