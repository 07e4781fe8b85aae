// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package config loads Guidepost configuration with Koanf v2.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (highest priority last):
//  1. Built-in defaults (defaultConfig)
//  2. .env file, exported into the process environment without overriding existing variables
//  3. YAML config file (CONFIG_PATH or config.yaml)
//  4. Environment variables, mapped through envTransformFunc
//
// Collaborator sections (Vision, Search, LLM, Translator, Speech) describe the external
// AI services the narration pipeline depends on. Pipeline holds the tunables of the
// pipeline itself.
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Vision     VisionConfig     `koanf:"vision"`
	Search     SearchConfig     `koanf:"search"`
	LLM        LLMConfig        `koanf:"llm"`
	Translator TranslatorConfig `koanf:"translator"`
	Speech     SpeechConfig     `koanf:"speech"`
	Metadata   MetadataConfig   `koanf:"metadata"`
	Locale     LocaleConfig     `koanf:"locale"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"` // read/write timeout; must exceed the worst-case pipeline run
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds CORS and rate limiting settings. Guidepost has no authentication.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds zerolog settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// VisionConfig configures the asynchronous image analysis service.
//
// Environment Variables:
//   - AZURE_VISION_ENDPOINT (required)
//   - AZURE_VISION_KEY (required)
type VisionConfig struct {
	Endpoint          string        `koanf:"endpoint"`
	APIKey            string        `koanf:"api_key"`
	APIVersion        string        `koanf:"api_version"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// SearchConfig configures the semantic search index holding attraction documents.
//
// Environment Variables:
//   - AZURE_SEARCH_ENDPOINT, AZURE_SEARCH_INDEX, AZURE_SEARCH_KEY (required)
type SearchConfig struct {
	Endpoint              string        `koanf:"endpoint"`
	Index                 string        `koanf:"index"`
	APIKey                string        `koanf:"api_key"`
	APIVersion            string        `koanf:"api_version"`
	SemanticConfiguration string        `koanf:"semantic_configuration"`
	Top                   int           `koanf:"top"`
	Timeout               time.Duration `koanf:"timeout"`
	RequestsPerSecond     float64       `koanf:"requests_per_second"`
}

// LLMConfig configures the chat completion deployment used for narratives.
//
// Environment Variables:
//   - AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_KEY (required)
//   - AZURE_OPENAI_API_VERSION (default: 2023-05-15)
//   - AZURE_OPENAI_DEPLOYMENT (default: gpt-4o)
type LLMConfig struct {
	Endpoint          string        `koanf:"endpoint"`
	APIKey            string        `koanf:"api_key"`
	APIVersion        string        `koanf:"api_version"`
	Deployment        string        `koanf:"deployment"`
	Temperature       float64       `koanf:"temperature"`
	MaxRetries        int           `koanf:"max_retries"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// TranslatorConfig configures the text translation service.
//
// Environment Variables:
//   - AZURE_TRANSLATION_ENDPOINT (default: global endpoint)
//   - AZURE_TRANSLATION_KEY (required)
//   - AZURE_TRANSLATION_REGION (optional, required for regional resources)
type TranslatorConfig struct {
	Endpoint          string        `koanf:"endpoint"`
	APIKey            string        `koanf:"api_key"`
	Region            string        `koanf:"region"`
	Timeout           time.Duration `koanf:"timeout"`
	CatalogTTL        time.Duration `koanf:"catalog_ttl"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// SpeechConfig configures the text-to-speech service.
//
// Environment Variables:
//   - AZURE_SPEECH_KEY, AZURE_SPEECH_REGION (required)
//   - SPEECH_TIMEOUT (default: 30s)
type SpeechConfig struct {
	Region            string        `koanf:"region"`
	APIKey            string        `koanf:"api_key"`
	Endpoint          string        `koanf:"endpoint"` // overrides https://{region}.tts.speech.microsoft.com
	OutputFormat      string        `koanf:"output_format"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// MetadataConfig configures the BadgerDB store mapping attraction titles to image URLs.
type MetadataConfig struct {
	Path           string        `koanf:"path"`
	InMemory       bool          `koanf:"in_memory"`
	SeedFile       string        `koanf:"seed_file"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
}

// LocaleConfig points at an optional external locale table file.
// When empty the embedded tables are used.
type LocaleConfig struct {
	TablesFile string `koanf:"tables_file"`
}

// PipelineConfig holds narration pipeline tunables.
type PipelineConfig struct {
	// DefaultLanguage applies when a request carries no language.
	DefaultLanguage string `koanf:"default_language"`

	// ConfidenceThreshold is the minimum search score accepted as a match (inclusive).
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// PollInterval is the fixed wait between analysis status polls.
	PollInterval time.Duration `koanf:"poll_interval"`

	// PollMaxAttempts bounds the number of status polls before the job is TimedOut.
	PollMaxAttempts int `koanf:"poll_max_attempts"`

	// ImageLookupTimeout bounds the metadata lookup branch.
	ImageLookupTimeout time.Duration `koanf:"image_lookup_timeout"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

// ShouldWarnAboutCORS reports a wildcard origin outside development.
func (c *Config) ShouldWarnAboutCORS() bool {
	if c.IsDevelopment() {
		return false
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// Load loads configuration from defaults, .env, the config file and the environment.
func Load(opts ...LoadOption) (*Config, error) {
	return LoadWithKoanf(opts...)
}
