// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateLocal(); err != nil {
		return err
	}
	return c.validateCollaborators()
}

// validateLocal checks everything that does not involve external service credentials.
func (c *Config) validateLocal() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateMetadata(); err != nil {
		return err
	}

	return c.validatePipeline()
}

// validateCollaborators checks endpoints and credentials of the external AI services.
func (c *Config) validateCollaborators() error {
	if err := c.validateVision(); err != nil {
		return err
	}

	if err := c.validateSearch(); err != nil {
		return err
	}

	if err := c.validateLLM(); err != nil {
		return err
	}

	if err := c.validateTranslator(); err != nil {
		return err
	}

	return c.validateSpeech()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

// validateSecurity validates CORS and rate limiting bounds.
func (c *Config) validateSecurity() error {
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must contain at least one origin (use * to allow all)")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQS must be at least 1 when rate limiting is enabled")
	}
	if c.Security.RateLimitWindow < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if !c.Metadata.InMemory && c.Metadata.Path == "" {
		return fmt.Errorf("METADATA_PATH is required unless METADATA_IN_MEMORY=true")
	}
	if c.Metadata.GCDiscardRatio <= 0 || c.Metadata.GCDiscardRatio >= 1 {
		return fmt.Errorf("METADATA_GC_DISCARD_RATIO must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.DefaultLanguage == "" {
		return fmt.Errorf("DEFAULT_LANGUAGE must not be empty")
	}
	if p.ConfidenceThreshold < 0 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must not be negative")
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if p.PollMaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}
	// The analysis wait, one generation attempt and the speech timer run back to
	// back and must fit in the HTTP write timeout. Search, translation and LLM
	// retries use the remaining headroom and end with the request context.
	poll := p.PollInterval * time.Duration(p.PollMaxAttempts)
	if worst := poll + c.LLM.Timeout + c.Speech.Timeout; worst >= c.Server.Timeout {
		return fmt.Errorf("POLL_INTERVAL x POLL_MAX_ATTEMPTS (%s) + LLM_TIMEOUT (%s) + SPEECH_TIMEOUT (%s) must be less than SERVER_TIMEOUT (%s)",
			poll, c.LLM.Timeout, c.Speech.Timeout, c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateVision() error {
	if err := requireURL(c.Vision.Endpoint, "vision.endpoint"); err != nil {
		return err
	}
	return requireValue(c.Vision.APIKey, "vision.api_key")
}

func (c *Config) validateSearch() error {
	if err := requireURL(c.Search.Endpoint, "search.endpoint"); err != nil {
		return err
	}
	if err := requireValue(c.Search.Index, "search.index"); err != nil {
		return err
	}
	if err := requireValue(c.Search.APIKey, "search.api_key"); err != nil {
		return err
	}
	if c.Search.Top < 1 {
		return fmt.Errorf("SEARCH_TOP must be at least 1")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := requireURL(c.LLM.Endpoint, "llm.endpoint"); err != nil {
		return err
	}
	if err := requireValue(c.LLM.APIKey, "llm.api_key"); err != nil {
		return err
	}
	if err := requireValue(c.LLM.Deployment, "llm.deployment"); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative")
	}
	return nil
}

func (c *Config) validateTranslator() error {
	if err := requireURL(c.Translator.Endpoint, "translator.endpoint"); err != nil {
		return err
	}
	return requireValue(c.Translator.APIKey, "translator.api_key")
}

func (c *Config) validateSpeech() error {
	if err := requireValue(c.Speech.APIKey, "speech.api_key"); err != nil {
		return err
	}
	if c.Speech.Endpoint != "" {
		return requireURL(c.Speech.Endpoint, "speech.endpoint")
	}
	return requireValue(c.Speech.Region, "speech.region")
}

func requireValue(value, path string) error {
	if value == "" {
		return fmt.Errorf("%s is required", envNameFor(path))
	}
	return nil
}

func requireURL(value, path string) error {
	if err := requireValue(value, path); err != nil {
		return err
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", envNameFor(path), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", envNameFor(path), u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", envNameFor(path))
	}
	return nil
}
