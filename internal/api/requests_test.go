// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guidepost/internal/validation"
)

func TestOriginalContent_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    *OriginalContent
		wantErr bool
	}{
		{"object", `{"originalContent":{"title":"Clock Tower","content":"Built in 1915."}}`, &OriginalContent{Title: "Clock Tower", Content: "Built in 1915."}, false},
		{"string", `{"originalContent":"Built in 1915."}`, &OriginalContent{Content: "Built in 1915."}, false},
		{"null", `{"originalContent":null}`, nil, false},
		{"absent", `{}`, nil, false},
		{"array", `{"originalContent":[1,2]}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var req TranslateRequest
			err := json.Unmarshal([]byte(tt.input), &req)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if tt.want == nil {
				if req.OriginalContent != nil && *req.OriginalContent != (OriginalContent{}) {
					t.Errorf("OriginalContent = %+v, want empty", req.OriginalContent)
				}
				return
			}
			if req.OriginalContent == nil || *req.OriginalContent != *tt.want {
				t.Errorf("OriginalContent = %+v, want %+v", req.OriginalContent, tt.want)
			}
		})
	}
}

func TestTranslateRequest_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   TranslateRequest
		valid bool
	}{
		{"minimal", TranslateRequest{Text: "x"}, true},
		{"with language", TranslateRequest{Text: "x", Language: "zh-Hant"}, true},
		{"missing text", TranslateRequest{Language: "fr"}, false},
		{"bad language", TranslateRequest{Text: "x", Language: "??"}, false},
		{"long title", TranslateRequest{Text: "x", OriginalContent: &OriginalContent{Title: string(make([]rune, 300))}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validation.ValidateStruct(&tt.req)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
