// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/pipeline"
	"github.com/tomtom215/guidepost/internal/search"
)

const (
	formFieldImage    = "image"
	formFieldLanguage = "language"

	// multipartMemory is kept in memory before parts spill to temp files.
	multipartMemory = 4 << 20
)

// AnalyzeResponse is the body of a successful POST /api/analyzeimage.
// ImgURL is null when no image is known for the attraction.
type AnalyzeResponse struct {
	Results  []search.Document `json:"results"`
	Response pipeline.Result   `json:"response"`
	ImgURL   *string           `json:"imgurl"`
}

// AnalyzeImage identifies the landmark in an uploaded photo and narrates it.
func (h *Handler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	image, language, err := h.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Int("image_bytes", len(image)).
		Str("language", sanitizeLogValue(language)).
		Msg("Image received, starting analysis")

	res, err := h.pipeline.Analyze(r.Context(), image, language)
	if err != nil {
		respondError(w, r, err)
		return
	}

	body := AnalyzeResponse{Results: res.Documents, Response: res.Response}
	if body.Results == nil {
		body.Results = []search.Document{}
	}
	if res.ImageURL != "" {
		url := res.ImageURL
		body.ImgURL = &url
	}
	respondJSON(w, http.StatusOK, body)
}

// readUpload returns the image bytes and the requested language of a multipart upload.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	if r.ContentLength > h.maxUploadBytes {
		return nil, "", &http.MaxBytesError{Limit: h.maxUploadBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return nil, "", err
		case errors.Is(err, http.ErrNotMultipart):
			return nil, "", ErrUploadMissing
		default:
			return nil, "", fmt.Errorf("%w: %w", ErrInvalidBody, err)
		}
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, _, err := r.FormFile(formFieldImage)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", ErrUploadMissing
		}
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	defer func() {
		_ = file.Close()
	}()

	image, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if len(image) == 0 {
		return nil, "", ErrUploadMissing
	}
	return image, r.FormValue(formFieldLanguage), nil
}
