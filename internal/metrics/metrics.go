// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package metrics holds the Prometheus instrumentation for Guidepost:
// HTTP traffic, narration pipeline stages, collaborator calls and circuit breakers.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guidepost"

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency in seconds",
			// Narration requests run several remote calls in sequence.
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Number of API requests currently being processed",
		},
	)

	// Pipeline Metrics
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each narration pipeline stage",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage", "outcome"}, // outcome: ok, error, skipped
	)

	PipelineResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Narration results by type",
		},
		[]string{"type"}, // matched, no_results, failed
	)

	// Collaborator Metrics
	CollaboratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_requests_total",
			Help:      "Outbound requests to external services",
		},
		[]string{"service", "outcome"}, // outcome: 2xx, 4xx, 5xx, transport, rejected
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_request_duration_seconds",
			Help:      "Latency of outbound requests to external services",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	CollaboratorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_retries_total",
			Help:      "Retried outbound requests",
		},
		[]string{"service"},
	)

	AnalysisPollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_poll_attempts",
			Help:      "Status polls needed per image analysis job",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
		},
	)

	SpeechSynthesis = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_synthesis_total",
			Help:      "Speech synthesis attempts by outcome",
		},
		[]string{"outcome"}, // completed, canceled, errored, timeout
	)

	SpeechAudioBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speech_audio_bytes",
			Help:      "Size of synthesized audio payloads",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 10), // 4 KiB .. 2 MiB
		},
	)

	TranslationCatalogRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_catalog_refreshes_total",
			Help:      "Fetches of the supported language catalog",
		},
		[]string{"result"}, // success, error
	)

	// Image Metadata Store Metrics
	ImageLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_lookups_total",
			Help:      "Image metadata lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	ImageStoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_store_gc_runs_total",
			Help:      "Badger value log GC cycles by result",
		},
		[]string{"result"}, // rewritten, nothing, error
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_consecutive_failures",
			Help:      "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// Stage outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// RecordStage records the duration of one pipeline stage.
func RecordStage(stage string, duration time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	PipelineStageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// RecordStageSkipped marks a stage that was not run for a request.
func RecordStageSkipped(stage string) {
	PipelineStageDuration.WithLabelValues(stage, OutcomeSkipped).Observe(0)
}

// RecordPipelineResult counts a finished narration by result type.
func RecordPipelineResult(resultType string) {
	PipelineResults.WithLabelValues(resultType).Inc()
}

// RecordCollaboratorCall records one outbound request. A zero statusCode means
// the request never got a response.
func RecordCollaboratorCall(service string, statusCode int, duration time.Duration) {
	CollaboratorRequests.WithLabelValues(service, statusClass(statusCode)).Inc()
	CollaboratorDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordCollaboratorRejected counts a call refused by an open breaker.
func RecordCollaboratorRejected(service string) {
	CollaboratorRequests.WithLabelValues(service, "rejected").Inc()
}

// RecordCollaboratorRetry counts a retried outbound request.
func RecordCollaboratorRetry(service string) {
	CollaboratorRetries.WithLabelValues(service).Inc()
}

// RecordAnalysisPolls records how many status polls an analysis job took.
func RecordAnalysisPolls(attempts int) {
	AnalysisPollAttempts.Observe(float64(attempts))
}

// RecordSpeechOutcome counts a synthesis attempt; audioBytes is ignored unless it completed.
func RecordSpeechOutcome(outcome string, audioBytes int) {
	SpeechSynthesis.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		SpeechAudioBytes.Observe(float64(audioBytes))
	}
}

// RecordCatalogRefresh counts a language catalog fetch.
func RecordCatalogRefresh(err error) {
	if err != nil {
		TranslationCatalogRefreshes.WithLabelValues("error").Inc()
		return
	}
	TranslationCatalogRefreshes.WithLabelValues("success").Inc()
}

// RecordImageLookup counts a metadata lookup: hit, miss or error.
func RecordImageLookup(result string) {
	ImageLookups.WithLabelValues(result).Inc()
}

// RecordImageStoreGC counts a value log GC cycle.
func RecordImageStoreGC(result string) {
	ImageStoreGCRuns.WithLabelValues(result).Inc()
}

func statusClass(code int) string {
	if code <= 0 {
		return "transport"
	}
	return strconv.Itoa(code/100) + "xx"
}
