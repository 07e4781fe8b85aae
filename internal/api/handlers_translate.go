// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/validation"
)

// maxTranslateBodyBytes bounds the JSON body of a retell request.
const maxTranslateBodyBytes = 1 << 20

// Translate retells text in another language with fresh narration audio.
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTranslateBodyBytes)

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, err)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %w", ErrInvalidBody, err))
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr)
		return
	}

	event := logging.Ctx(r.Context()).Info().
		Int("text_len", len(req.Text)).
		Str("language", req.Language)
	if req.OriginalContent != nil && req.OriginalContent.Title != "" {
		event = event.Str("title", sanitizeLogValue(req.OriginalContent.Title))
	}
	event.Msg("Retelling narrative")

	// The empty source hint means the narrative's generation language.
	res, err := h.pipeline.Retell(r.Context(), req.Text, "", req.Language)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
