// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package speech synthesizes narrated audio.
//
// A Synthesizer performs one call and reports a tagged Result. The Narrator
// runs it against a timeout and turns the Result into an AudioPayload or an error.
package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guidepost/internal/remote"
)

// ServiceName labels this collaborator in metrics and logs.
const ServiceName = "speech"

// DefaultOutputFormat is 16 kHz mono MP3 at 32 kbit/s.
const DefaultOutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// Voice selects the synthesis language and voice.
type Voice struct {
	Language string
	Name     string
}

// Request is one synthesis call. It is built per call and never shared.
type Request struct {
	Text   string
	Voice  Voice
	Format string
}

// Outcome tags how a synthesis call ended.
type Outcome int

const (
	// Completed carries audio.
	Completed Outcome = iota
	// Canceled means the service refused or aborted the synthesis and said why.
	Canceled
	// Errored means the call itself failed (transport, open breaker, caller cancellation).
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a synthesis call.
type Result struct {
	Outcome Outcome
	Audio   []byte
	Reason  string
	Details string
	Err     error
}

// Synthesizer performs a single synthesis call.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) Result
}

// Config configures a Client.
type Config struct {
	Region            string
	APIKey            string
	Endpoint          string // overrides https://{region}.tts.speech.microsoft.com
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client is the REST Synthesizer. Safe for concurrent use.
type Client struct {
	http *remote.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region == "" {
			return nil, fmt.Errorf("%s: region or endpoint is required", ServiceName)
		}
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com", cfg.Region)
	}
	rc, err := remote.New(remote.Options{
		Service: ServiceName,
		BaseURL: endpoint,
		Header: http.Header{
			"Ocp-Apim-Subscription-Key": []string{cfg.APIKey},
			"User-Agent":                []string{"guidepost"},
		},
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        1,
		HTTPClient:        cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: rc}, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.http.BreakerState()
}

// Synthesize sends req as SSML. A rejected request is reported as Canceled with
// reason "Error" and the service's details; a failed call is Errored.
func (c *Client) Synthesize(ctx context.Context, req Request) Result {
	format := req.Format
	if format == "" {
		format = DefaultOutputFormat
	}
	resp, err := c.http.Do(ctx, remote.Request{
		Method:      http.MethodPost,
		Path:        "/cognitiveservices/v1",
		Header:      http.Header{"X-Microsoft-OutputFormat": []string{format}},
		Body:        BuildSSML(req),
		ContentType: "application/ssml+xml",
		Expect:      []int{http.StatusOK},
	})
	if err != nil {
		var se *remote.StatusError
		if errors.As(err, &se) {
			details := se.Body
			if details == "" {
				details = fmt.Sprintf("HTTP %d %s", se.StatusCode, http.StatusText(se.StatusCode))
			}
			return Result{Outcome: Canceled, Reason: "Error", Details: details, Err: err}
		}
		return Result{Outcome: Errored, Err: err}
	}
	if len(resp.Body) == 0 {
		return Result{Outcome: Canceled, Reason: "Error", Details: "service returned no audio"}
	}
	return Result{Outcome: Completed, Audio: resp.Body}
}

// Voices returns the number of voices the service offers. It doubles as a health check.
func (c *Client) Voices(ctx context.Context) (int, error) {
	var voices []json.RawMessage
	if _, err := c.http.DoJSON(ctx, http.MethodGet, "/cognitiveservices/voices/list", nil, nil, &voices); err != nil {
		return 0, err
	}
	return len(voices), nil
}

// BuildSSML renders the request as a single-voice SSML document with escaped text.
func BuildSSML(req Request) []byte {
	var b bytes.Buffer
	b.WriteString("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='")
	escape(&b, req.Voice.Language)
	b.WriteString("'><voice xml:lang='")
	escape(&b, req.Voice.Language)
	b.WriteString("' name='")
	escape(&b, req.Voice.Name)
	b.WriteString("'>")
	escape(&b, req.Text)
	b.WriteString("</voice></speak>")
	return b.Bytes()
}

func escape(b *bytes.Buffer, s string) {
	// EscapeText never fails when writing to a bytes.Buffer.
	_ = xml.EscapeText(b, []byte(s))
}
