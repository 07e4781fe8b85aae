// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guidepost/internal/pipeline"
	"github.com/tomtom215/guidepost/internal/search"
	"github.com/tomtom215/guidepost/internal/translation"
	"github.com/tomtom215/guidepost/internal/vision"
)

const catalogJSON = `{"translation":{"fr":{"name":"French","nativeName":"Français","dir":"ltr"},"zh-Hant":{"name":"Chinese Traditional","nativeName":"繁體中文","dir":"ltr"}}}`

type fakePipeline struct {
	mu          sync.Mutex
	gotImage    []byte
	gotLanguage string
	gotText     string

	analyzeResult *pipeline.AnalyzeResult
	retellResult  *pipeline.RetellResult
	err           error
}

func (f *fakePipeline) Analyze(_ context.Context, image []byte, language string) (*pipeline.AnalyzeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotImage = image
	f.gotLanguage = language
	if f.err != nil {
		return nil, f.err
	}
	return f.analyzeResult, nil
}

func (f *fakePipeline) Retell(_ context.Context, text, _, language string) (*pipeline.RetellResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotText = text
	f.gotLanguage = language
	if f.err != nil {
		return nil, f.err
	}
	return f.retellResult, nil
}

type fakeCatalog struct {
	cat *translation.Catalog
	err error
}

func (f fakeCatalog) Languages(context.Context) (*translation.Catalog, error) {
	return f.cat, f.err
}

func newCatalog(t *testing.T) *translation.Catalog {
	t.Helper()
	cat, err := translation.ParseCatalog([]byte(catalogJSON), time.Now())
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return cat
}

func successResult(imageURL string) *pipeline.AnalyzeResult {
	return &pipeline.AnalyzeResult{
		Documents: []search.Document{{"title": "Clock Tower", "@search.rerankerScore": 3.1}},
		Response: pipeline.Result{
			Type:     pipeline.TypeSuccess,
			Text:     "La tour de l'horloge",
			Language: "fr",
			Source:   &pipeline.Source{Title: "Clock Tower", Content: "Built in 1915."},
			Audio:    &pipeline.Audio{Content: []byte("mp3"), ContentType: "audio/mp3", Duration: 1, Size: 3},
			ImageURL: imageURL,
		},
		ImageURL: imageURL,
	}
}

func newTestServer(t *testing.T, p *fakePipeline, checks []HealthCheck, mw *ChiMiddlewareConfig) http.Handler {
	t.Helper()
	h, err := NewHandler(HandlerConfig{
		Pipeline:       p,
		Languages:      fakeCatalog{cat: newCatalog(t)},
		Checks:         checks,
		MaxUploadBytes: 64 << 10,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	if mw == nil {
		mw = DefaultChiMiddlewareConfig()
		mw.CORSAllowedOrigins = []string{"*"}
		mw.RateLimitDisabled = true
	}
	return NewRouter(h, NewChiMiddleware(mw)).SetupChi()
}

func multipartBody(t *testing.T, image []byte, language string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		part, err := mw.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatal(err)
		}
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, srv http.Handler, image []byte, language string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, image, language)
	req := httptest.NewRequest(http.MethodPost, "/api/analyzeimage", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAnalyzeImage_Success(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{analyzeResult: successResult("https://img.example.com/clock.jpg")}
	srv := newTestServer(t, p, nil, nil)

	rec := postUpload(t, srv, []byte("jpeg-bytes"), "fr")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if string(p.gotImage) != "jpeg-bytes" || p.gotLanguage != "fr" {
		t.Errorf("pipeline got image %q language %q", p.gotImage, p.gotLanguage)
	}

	var body struct {
		Results  []map[string]interface{} `json:"results"`
		Response struct {
			Type     string `json:"type"`
			Language string `json:"language"`
			Audio    struct {
				Content     string `json:"content"`
				ContentType string `json:"contentType"`
			} `json:"audio"`
		} `json:"response"`
		ImgURL *string `json:"imgurl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0]["title"] != "Clock Tower" {
		t.Errorf("results = %v", body.Results)
	}
	if body.Response.Language != "fr" || body.Response.Type != "success" {
		t.Errorf("response = %+v", body.Response)
	}
	if body.Response.Audio.ContentType != "audio/mp3" || body.Response.Audio.Content != "bXAz" {
		t.Errorf("audio = %+v, want base64 content", body.Response.Audio)
	}
	if body.ImgURL == nil || *body.ImgURL != "https://img.example.com/clock.jpg" {
		t.Errorf("imgurl = %v", body.ImgURL)
	}
}

func TestAnalyzeImage_NullImageURLAndEmptyResults(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{analyzeResult: &pipeline.AnalyzeResult{
		Response: pipeline.Result{Type: pipeline.TypeNoResults, Text: "no match", Language: "zh"},
	}}
	srv := newTestServer(t, p, nil, nil)

	rec := postUpload(t, srv, []byte("jpeg"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if got := string(body["imgurl"]); got != "null" {
		t.Errorf("imgurl = %s, want null", got)
	}
	if got := string(body["results"]); got != "[]" {
		t.Errorf("results = %s, want []", got)
	}
}

func TestAnalyzeImage_BadUploads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name: "missing image part",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, nil, "fr")
				req := httptest.NewRequest(http.MethodPost, "/api/analyzeimage", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeUploadMissing,
		},
		{
			name: "empty image",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, []byte{}, "fr")
				req := httptest.NewRequest(http.MethodPost, "/api/analyzeimage", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeUploadMissing,
		},
		{
			name: "not multipart",
			build: func(*testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/analyzeimage", strings.NewReader(`{"image":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeUploadMissing,
		},
		{
			name: "too large",
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, bytes.Repeat([]byte("x"), 128<<10), "fr")
				req := httptest.NewRequest(http.MethodPost, "/api/analyzeimage", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  ErrCodePayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &fakePipeline{analyzeResult: successResult("")}
			srv := newTestServer(t, p, nil, nil)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, tt.build(t))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", body.Code, tt.wantErr)
			}
			if body.RequestID == "" || body.RequestID != rec.Header().Get("X-Request-ID") {
				t.Errorf("request_id = %q, header = %q", body.RequestID, rec.Header().Get("X-Request-ID"))
			}
			if p.gotImage != nil {
				t.Error("pipeline must not run for a bad upload")
			}
		})
	}
}

func TestAnalyzeImage_PipelineErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"analysis", &pipeline.StageError{Stage: pipeline.StageAnalysis, Err: vision.ErrAnalysisTimedOut}, ErrCodeAnalysisFailed},
		{"generation", &pipeline.StageError{Stage: pipeline.StageGeneration, Err: errors.New("llm down")}, ErrCodeGenerationFailed},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, &fakePipeline{err: tt.err}, nil, nil)
			rec := postUpload(t, srv, []byte("jpeg"), "fr")

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Error != msgPipelineFailed {
				t.Errorf("error = %q", body.Error)
			}
			if strings.Contains(rec.Body.String(), "llm down") {
				t.Error("internal error details must not leak to clients")
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"source object", `{"text":"鐘樓","language":"fr","originalContent":{"title":"Clock Tower","content":"鐘樓"}}`, http.StatusOK, ""},
		{"source string", `{"text":"鐘樓","language":"fr","originalContent":"鐘樓"}`, http.StatusOK, ""},
		{"no original content", `{"text":"鐘樓","language":"fr"}`, http.StatusOK, ""},
		{"default language", `{"text":"鐘樓"}`, http.StatusOK, ""},
		{"missing text", `{"language":"fr"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"legacy alias language", `{"text":"鐘樓","language":"zh-chs"}`, http.StatusOK, ""},
		{"unknown language", `{"text":"鐘樓","language":"not a language!"}`, http.StatusOK, ""},
		{"oversized language", `{"text":"x","language":"` + strings.Repeat("x", 36) + `"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"malformed json", `{"text":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"original content number", `{"text":"x","originalContent":42}`, http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &fakePipeline{retellResult: &pipeline.RetellResult{
				Text:     "La tour",
				Language: "fr",
				Audio:    &pipeline.Audio{Content: []byte("mp3"), ContentType: "audio/mp3"},
			}}
			srv := newTestServer(t, p, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := decodeError(t, rec).Code; got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
				return
			}

			var res pipeline.RetellResult
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatal(err)
			}
			if res.Text != "La tour" || res.Audio == nil || res.Audio.ContentType != "audio/mp3" {
				t.Errorf("response = %+v", res)
			}
			if p.gotText != "鐘樓" {
				t.Errorf("pipeline text = %q", p.gotText)
			}
		})
	}
}

func TestTranslate_PassesLanguageUnchanged(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{retellResult: &pipeline.RetellResult{Text: "钟楼", Language: "zh-chs"}}
	srv := newTestServer(t, p, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(`{"text":"x","language":"zh-chs"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gotLanguage != "zh-chs" {
		t.Errorf("pipeline language = %q, want zh-chs", p.gotLanguage)
	}
}

func TestTranslate_AudioErrorPassesThrough(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{retellResult: &pipeline.RetellResult{Text: "Hello", Language: "en", AudioError: "speech synthesis timed out"}}
	srv := newTestServer(t, p, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(`{"text":"你好","language":"en"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["audio"]; ok {
		t.Error("audio should be omitted")
	}
	if body["audioError"] != "speech synthesis timed out" {
		t.Errorf("audioError = %v", body["audioError"])
	}
}

func TestLanguages_Passthrough(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakePipeline{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/languages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != catalogJSON {
		t.Errorf("body = %s, want the catalog verbatim", rec.Body.String())
	}
}

func TestLanguages_Failure(t *testing.T) {
	t.Parallel()

	h, err := NewHandler(HandlerConfig{
		Pipeline:  &fakePipeline{},
		Languages: fakeCatalog{err: fmt.Errorf("fetch language catalog: %w", errors.New("503"))},
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	NewRouter(h, nil).SetupChi().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/languages", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestNewHandler_Requires(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(HandlerConfig{Languages: fakeCatalog{}}); err == nil {
		t.Error("expected error without pipeline")
	}
	if _, err := NewHandler(HandlerConfig{Pipeline: &fakePipeline{}}); err == nil {
		t.Error("expected error without language catalog")
	}
}
