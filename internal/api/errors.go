// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/guidepost/internal/breaker"
	"github.com/tomtom215/guidepost/internal/pipeline"
	"github.com/tomtom215/guidepost/internal/validation"
)

var (
	// ErrUploadMissing means the multipart body had no image part.
	ErrUploadMissing = errors.New("image upload is missing")

	// ErrInvalidBody means the request body could not be decoded.
	ErrInvalidBody = errors.New("invalid request body")
)

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUploadMissing      = "UPLOAD_MISSING"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeAnalysisFailed     = "ANALYSIS_FAILED"
	ErrCodeSearchFailed       = "SEARCH_FAILED"
	ErrCodeGenerationFailed   = "GENERATION_FAILED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRequestCanceled    = "REQUEST_CANCELED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// User-facing messages. The pipeline messages match what the web client shows.
const (
	msgUploadMissing   = "請上傳圖片檔案"
	msgPipelineFailed  = "流程發生錯誤"
	msgPayloadTooLarge = "上傳的檔案過大"
	msgInvalidBody     = "Invalid request body"
	msgUnavailable     = "A required service is temporarily unavailable"
	msgCanceled        = "Request canceled"
	msgRateLimited     = "Too many requests, please slow down"
)

// statusForError maps an error to its HTTP status, error code and message.
func statusForError(err error) (int, string, string) {
	var maxBytes *http.MaxBytesError
	var validationErr *validation.RequestValidationError
	var stageErr *pipeline.StageError

	switch {
	case errors.Is(err, ErrUploadMissing):
		return http.StatusBadRequest, ErrCodeUploadMissing, msgUploadMissing
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, msgPayloadTooLarge
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrCodeValidationFailed, validationErr.ToAPIError().Message
	case errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest, ErrCodeBadRequest, msgInvalidBody
	case errors.Is(err, context.Canceled):
		// The client is gone; the status is only seen in logs and metrics.
		return http.StatusInternalServerError, ErrCodeRequestCanceled, msgCanceled
	case errors.Is(err, breaker.ErrOpen):
		return http.StatusInternalServerError, ErrCodeServiceUnavailable, msgUnavailable
	case errors.As(err, &stageErr):
		return http.StatusInternalServerError, stageErrorCode(stageErr.Stage), msgPipelineFailed
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, msgPipelineFailed
	}
}

func stageErrorCode(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageAnalysis:
		return ErrCodeAnalysisFailed
	case pipeline.StageSearch:
		return ErrCodeSearchFailed
	case pipeline.StageGeneration:
		return ErrCodeGenerationFailed
	default:
		return ErrCodeInternalError
	}
}
