// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// TranslateRequest is the body of POST /api/translate.
type TranslateRequest struct {
	Text            string           `json:"text" validate:"required,max=10000"`
	Language        string           `json:"language" validate:"max=35"`
	OriginalContent *OriginalContent `json:"originalContent,omitempty"`
}

// OriginalContent is the knowledge-base entry the text came from. Clients
// send either the source object of an analysis response or a bare string,
// which is taken as the content.
type OriginalContent struct {
	Title   string `json:"title" validate:"max=256"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts an object, a string or null.
func (o *OriginalContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '"' {
		var content string
		if err := json.Unmarshal(trimmed, &content); err != nil {
			return fmt.Errorf("originalContent: %w", err)
		}
		o.Content = content
		return nil
	}

	type plain OriginalContent
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("originalContent must be an object or a string: %w", err)
	}
	*o = OriginalContent(p)
	return nil
}
