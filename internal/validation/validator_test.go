// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package validation

import (
	"strings"
	"testing"
)

type translateInput struct {
	Content        string `json:"content" validate:"required,max=20"`
	TargetLanguage string `json:"targetLanguage" validate:"required,max=35"`
	Format         string `json:"format" validate:"omitempty,oneof=text html"`
	Count          int    `json:"count" validate:"min=0,max=5"`
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input translateInput
	}{
		{"simple tag", translateInput{Content: "hello", TargetLanguage: "en"}},
		{"script subtag", translateInput{Content: "hello", TargetLanguage: "zh-Hant"}},
		{"region subtag", translateInput{Content: "hello", TargetLanguage: "pt-BR"}},
		{"underscore separator", translateInput{Content: "hello", TargetLanguage: "zh_TW"}},
		{"legacy alias", translateInput{Content: "hello", TargetLanguage: "zh-chs"}},
		{"with format", translateInput{Content: "hello", TargetLanguage: "ja", Format: "html", Count: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     translateInput
		wantField string
		wantTag   string
	}{
		{"missing content", translateInput{TargetLanguage: "en"}, "content", "required"},
		{"content too long", translateInput{Content: strings.Repeat("a", 21), TargetLanguage: "en"}, "content", "max"},
		{"missing language", translateInput{Content: "hi"}, "targetLanguage", "required"},
		{"language too long", translateInput{Content: "hi", TargetLanguage: strings.Repeat("x", 36)}, "targetLanguage", "max"},
		{"bad format", translateInput{Content: "hi", TargetLanguage: "en", Format: "pdf"}, "format", "oneof"},
		{"negative count", translateInput{Content: "hi", TargetLanguage: "en", Count: -1}, "count", "min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() should have returned an error")
			}
			found := false
			for _, e := range err.Errors() {
				if e.Field() == tt.wantField && e.Tag() == tt.wantTag {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on field %s with tag %s, got: %v", tt.wantField, tt.wantTag, err)
			}
		})
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&translateInput{Content: "hi"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Message != "targetLanguage is required" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "targetLanguage is required")
	}
	if apiErr.Details["field"] != "targetLanguage" {
		t.Errorf("Details[field] = %v, want targetLanguage", apiErr.Details["field"])
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&translateInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if !strings.Contains(apiErr.Message, "content is required") || !strings.Contains(apiErr.Message, "targetLanguage is required") {
		t.Errorf("Message = %q, want both fields listed", apiErr.Message)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Errorf("Details[fields] = %v, want 2 entries", apiErr.Details["fields"])
	}
}

func TestToAPIError_Empty(t *testing.T) {
	t.Parallel()

	apiErr := (&RequestValidationError{}).ToAPIError()
	if apiErr.Message != "Validation failed" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input translateInput
		want  string
	}{
		{"required", translateInput{Content: "hi"}, "targetLanguage is required"},
		{"string max", translateInput{Content: strings.Repeat("a", 21), TargetLanguage: "en"}, "content must be at most 20 characters"},
		{"int max", translateInput{Content: "hi", TargetLanguage: "en", Count: 6}, "count must be at most 5"},
		{"oneof", translateInput{Content: "hi", TargetLanguage: "en", Format: "pdf"}, "format must be one of: text html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
