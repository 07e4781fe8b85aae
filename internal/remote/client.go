// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package remote is the HTTP plumbing shared by the collaborator clients:
// outbound rate limiting, retries with backoff, a circuit breaker per service,
// status classification and metrics.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/guidepost/internal/breaker"
	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
)

// maxResponseBytes caps response bodies. Synthesized audio is the largest payload.
const maxResponseBytes = 32 << 20

// Options configures a Client.
type Options struct {
	// Service names the collaborator in errors, logs, metrics and the breaker.
	Service string

	// BaseURL is joined with each request path.
	BaseURL string

	// Header is sent on every request (credentials, region).
	Header http.Header

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// RequestsPerSecond limits outbound calls; 0 disables limiting.
	RequestsPerSecond float64

	// MaxRetries is the number of repeats after the first attempt.
	MaxRetries int

	// RetryBaseDelay is the first backoff interval (default 500ms).
	RetryBaseDelay time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Breaker overrides breaker settings; Name and IsSuccessful are always set here.
	Breaker breaker.Settings
}

// Client sends requests to one collaborator.
type Client struct {
	service    string
	baseURL    *url.URL
	header     http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker.Breaker
	maxRetries int
	baseDelay  time.Duration
}

// New builds a Client. The base URL must be absolute.
func New(opts Options) (*Client, error) {
	if opts.Service == "" {
		return nil, errors.New("remote: service name is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", opts.Service, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: base URL %q must be absolute", opts.Service, opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	baseDelay := opts.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	settings := opts.Breaker
	settings.Name = opts.Service
	settings.IsSuccessful = countsAsSuccess

	return &Client{
		service:    opts.Service,
		baseURL:    base,
		header:     opts.Header.Clone(),
		httpClient: httpClient,
		limiter:    limiter,
		breaker:    breaker.New(settings),
		maxRetries: opts.MaxRetries,
		baseDelay:  baseDelay,
	}, nil
}

// Service returns the collaborator name.
func (c *Client) Service() string {
	return c.service
}

// BreakerState returns the breaker state for readiness reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// ContentType of Body; ignored when Body is nil.
	ContentType string

	// Expect lists accepted status codes (default: any 2xx).
	Expect []int
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends req, retrying throttled and failed attempts with exponential backoff.
// Each attempt passes through the rate limiter and the circuit breaker.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if target := c.resolve(req.Path); !c.sameOrigin(target) {
		return nil, fmt.Errorf("%w: %s is not %s", ErrForeignHost, target.Host, c.baseURL.Host)
	}

	policy := &retryAfterBackOff{BackOff: newRetryPolicy(c.baseDelay, c.maxRetries)}
	attempts := 0
	op := func() (*Response, error) {
		attempts++
		resp, err := breaker.Do(c.breaker, func() (*Response, error) {
			return c.attempt(ctx, req)
		})
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > 0 {
			policy.hint(se.RetryAfter)
		}
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		metrics.RecordCollaboratorRetry(c.service)
		logging.Ctx(ctx).Warn().
			Str("service", c.service).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Err(err).
			Msg("Collaborator call failed, retrying")
	}

	resp, err := backoff.RetryNotifyWithData(op, backoff.WithContext(policy, ctx), notify)
	if err != nil {
		// Prefer the caller's context error when it ended the loop.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%s: %w (last error: %v)", c.service, ctxErr, err)
		}
		return nil, err
	}
	return resp, nil
}

// DoJSON encodes in (when non-nil) as the body and decodes a 2xx body into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) (*Response, error) {
	return c.DoJSONRequest(ctx, Request{Method: method, Path: path, Query: query}, in, out)
}

// DoJSONRequest is DoJSON for a request that carries its own headers or expected statuses.
func (c *Client) DoJSONRequest(ctx context.Context, req Request, in, out interface{}) (*Response, error) {
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		req.Body = body
		req.ContentType = "application/json"
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("%s: decode response: %w", c.service, err)
		}
	}
	return resp, nil
}

// Ping checks that the service answers at all. Any HTTP status counts as reachable;
// only transport failures and an open breaker are errors.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/"})
	var se *StatusError
	if errors.As(err, &se) {
		return nil
	}
	return err
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limiter: %w", c.service, err)
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordCollaboratorCall(c.service, 0, time.Since(start))
		return nil, fmt.Errorf("%s: execute request: %w", c.service, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	metrics.RecordCollaboratorCall(c.service, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.service, err)
	}

	if !expected(httpResp.StatusCode, req.Expect) {
		return nil, &StatusError{
			Service:    c.service,
			StatusCode: httpResp.StatusCode,
			Body:       truncateBody(body),
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now()),
		}
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.resolve(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.service, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	return httpReq, nil
}

// resolve accepts a path relative to the base URL or an absolute URL
// (the analysis service returns absolute Operation-Location URLs).
func (c *Client) resolve(path string) *url.URL {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return u
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return &u
}

// sameOrigin reports whether u shares the base URL's scheme and host, so
// that credentials in the default headers never leave the collaborator.
func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

func expected(status int, accepted []int) bool {
	if len(accepted) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range accepted {
		if s == status {
			return true
		}
	}
	return false
}
