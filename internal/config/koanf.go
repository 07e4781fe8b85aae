// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/guidepost/config.yaml",
	"/etc/guidepost/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPathEnvVar overrides the location of the .env file.
const DotEnvPathEnvVar = "DOTENV_PATH"

// defaultDotEnvPath is read when DOTENV_PATH is unset. A missing file is not an error.
const defaultDotEnvPath = ".env"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			Timeout:         180 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20, // 10 MiB
			Environment:     "development",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     60,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Vision: VisionConfig{
			APIVersion:        "2024-02-01",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
		},
		Search: SearchConfig{
			APIVersion:            "2025-05-01-Preview",
			SemanticConfiguration: "default",
			Top:                   5,
			Timeout:               15 * time.Second,
			RequestsPerSecond:     10,
		},
		LLM: LLMConfig{
			APIVersion:        "2023-05-15",
			Deployment:        "gpt-4o",
			Temperature:       0.7,
			MaxRetries:        3,
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
		},
		Translator: TranslatorConfig{
			Endpoint:          "https://api.cognitive.microsofttranslator.com",
			Timeout:           15 * time.Second,
			CatalogTTL:        time.Hour,
			RequestsPerSecond: 10,
		},
		Speech: SpeechConfig{
			OutputFormat:      "audio-16khz-32kbitrate-mono-mp3",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
		},
		Metadata: MetadataConfig{
			Path:           "./data/metadata",
			InMemory:       false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Pipeline: PipelineConfig{
			DefaultLanguage:     "zh",
			ConfidenceThreshold: 2.0,
			PollInterval:        2 * time.Second,
			PollMaxAttempts:     30,
			ImageLookupTimeout:  5 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
//
// Loading order (later sources override earlier ones):
//  1. Built-in defaults
//  2. .env file exported into the environment (existing variables win)
//  3. Config file (config.yaml, /etc/guidepost/config.yaml or CONFIG_PATH)
//  4. Environment variables
func LoadWithKoanf(opts ...LoadOption) (*Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional unless passed explicitly)
	configPath := lo.configFile
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// AZURE_VISION_ENDPOINT -> vision.endpoint
	// CONFIDENCE_THRESHOLD  -> pipeline.confidence_threshold
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := cfg.Validate
	if lo.skipCollaborators {
		validate = cfg.validateLocal
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

type loadOptions struct {
	skipCollaborators bool
	configFile        string
}

// LoadOption customizes LoadWithKoanf.
type LoadOption func(*loadOptions)

// WithoutCollaboratorValidation skips the checks on external service credentials.
// Maintenance commands that never call the services (seed-images) use it.
func WithoutCollaboratorValidation() LoadOption {
	return func(o *loadOptions) {
		o.skipCollaborators = true
	}
}

// WithConfigFile loads path instead of searching CONFIG_PATH and DefaultConfigPaths.
// A missing file is an error.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// loadDotEnv exports variables from the .env file without overriding the real environment.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnvPath
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices
// when they come from environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// The AZURE_* names match the variables operators already export for the services.
var envMappings = map[string]string{
	// Server
	"port":               "server.port",
	"server_host":        "server.host",
	"server_timeout":     "server.timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"max_upload_bytes":   "server.max_upload_bytes",
	"environment":        "server.environment",
	"cors_origins":       "security.cors_origins",
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"disable_rate_limit": "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Image analysis
	"azure_vision_endpoint":    "vision.endpoint",
	"azure_vision_key":         "vision.api_key",
	"azure_vision_api_version": "vision.api_version",
	"vision_timeout":           "vision.timeout",

	// Semantic search
	"azure_search_endpoint":               "search.endpoint",
	"azure_search_index":                  "search.index",
	"azure_search_key":                    "search.api_key",
	"azure_search_api_version":            "search.api_version",
	"azure_search_semantic_configuration": "search.semantic_configuration",
	"search_top":                          "search.top",

	// Narrative generation
	"azure_openai_endpoint":    "llm.endpoint",
	"azure_openai_key":         "llm.api_key",
	"azure_openai_api_version": "llm.api_version",
	"azure_openai_deployment":  "llm.deployment",
	"llm_temperature":          "llm.temperature",
	"llm_max_retries":          "llm.max_retries",
	"llm_timeout":              "llm.timeout",

	// Translation
	"azure_translation_endpoint": "translator.endpoint",
	"azure_translation_key":      "translator.api_key",
	"azure_translation_region":   "translator.region",
	"translation_catalog_ttl":    "translator.catalog_ttl",

	// Speech
	"azure_speech_key":           "speech.api_key",
	"azure_speech_region":        "speech.region",
	"azure_speech_endpoint":      "speech.endpoint",
	"azure_speech_output_format": "speech.output_format",
	"speech_timeout":             "speech.timeout",

	// Image metadata
	"metadata_path":             "metadata.path",
	"metadata_in_memory":        "metadata.in_memory",
	"metadata_seed_file":        "metadata.seed_file",
	"metadata_gc_interval":      "metadata.gc_interval",
	"metadata_gc_discard_ratio": "metadata.gc_discard_ratio",

	// Locale tables
	"locale_tables_file": "locale.tables_file",

	// Pipeline
	"default_language":     "pipeline.default_language",
	"confidence_threshold": "pipeline.confidence_threshold",
	"poll_interval":        "pipeline.poll_interval",
	"poll_max_attempts":    "pipeline.poll_max_attempts",
	"image_lookup_timeout": "pipeline.image_lookup_timeout",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped keys return "" so unrelated environment variables never leak into config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// envNameFor returns the environment variable bound to a koanf path, for error messages.
func envNameFor(path string) string {
	for name, p := range envMappings {
		if p == path {
			return strings.ToUpper(name)
		}
	}
	return path
}
