// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package vision submits photographs to the asynchronous image analysis
// service and polls the resulting job until it settles.
package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/remote"
)

// ServiceName labels this collaborator in metrics and logs.
const ServiceName = "vision"

// Config configures a Client.
type Config struct {
	Endpoint          string
	APIKey            string
	APIVersion        string
	Timeout           time.Duration
	RequestsPerSecond float64

	// PollInterval is the fixed wait between status polls.
	PollInterval time.Duration

	// PollMaxAttempts bounds the number of status polls.
	PollMaxAttempts int

	// HTTPClient overrides the transport in tests.
	HTTPClient *http.Client
}

// Status is the state of an analysis job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timedOut"
)

// Job tracks one submitted analysis.
type Job struct {
	OperationHandle string
	Status          Status
	ResultLabel     string
	Confidence      float64
	FailureReason   string
}

// operationResponse is the body of a status poll.
type operationResponse struct {
	Status string `json:"status"`
	Result *struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"result"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the image analysis service. Safe for concurrent use.
type Client struct {
	http         *remote.Client
	apiVersion   string
	pollInterval time.Duration
	maxAttempts  int
	logger       zerolog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	rc, err := remote.New(remote.Options{
		Service:           ServiceName,
		BaseURL:           cfg.Endpoint,
		Header:            http.Header{"Ocp-Apim-Subscription-Key": []string{cfg.APIKey}},
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        2,
		HTTPClient:        cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	attempts := cfg.PollMaxAttempts
	if attempts < 1 {
		attempts = 30
	}

	return &Client{
		http:         rc,
		apiVersion:   cfg.APIVersion,
		pollInterval: interval,
		maxAttempts:  attempts,
		logger:       logging.WithComponent("vision"),
	}, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.http.BreakerState()
}

// Submit uploads the image and returns a pending job.
func (c *Client) Submit(ctx context.Context, image []byte) (*Job, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrAnalysisFailure)
	}

	resp, err := c.http.Do(ctx, remote.Request{
		Method:      http.MethodPost,
		Path:        "/vision/analyze",
		Query:       url.Values{"api-version": {c.apiVersion}},
		Body:        image,
		ContentType: "application/octet-stream",
		Expect:      []int{http.StatusAccepted},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: submit: %w", ErrAnalysisFailure, err)
	}

	handle := resp.Header.Get("Operation-Location")
	if handle == "" {
		return nil, fmt.Errorf("%w: response has no Operation-Location", ErrAnalysisFailure)
	}
	return &Job{OperationHandle: handle, Status: StatusPending}, nil
}

// Refresh polls the job once and updates it in place.
func (c *Client) Refresh(ctx context.Context, job *Job) error {
	resp, err := c.http.Do(ctx, remote.Request{Method: http.MethodGet, Path: job.OperationHandle})
	if err != nil {
		return fmt.Errorf("%w: poll: %w", ErrAnalysisFailure, err)
	}

	var op operationResponse
	if err := json.Unmarshal(resp.Body, &op); err != nil {
		return fmt.Errorf("%w: decode status: %w", ErrAnalysisFailure, err)
	}

	switch op.Status {
	case "notStarted", "running":
		job.Status = StatusPending
	case "succeeded":
		job.Status = StatusSucceeded
		if op.Result != nil {
			job.ResultLabel = op.Result.Label
			job.Confidence = op.Result.Confidence
		}
	case "failed":
		job.Status = StatusFailed
		job.FailureReason = "unknown error"
		if op.Error != nil {
			job.FailureReason = op.Error.Code + ": " + op.Error.Message
		}
	default:
		return fmt.Errorf("%w: unknown job status %q", ErrAnalysisFailure, op.Status)
	}
	return nil
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.Ping(ctx)
}
