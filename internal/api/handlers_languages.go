// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"net/http"
)

// Languages returns the translator's language catalog exactly as received.
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	cat, err := h.languages.Languages(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondRawJSON(w, http.StatusOK, cat.Raw(), "public, max-age=300")
}
