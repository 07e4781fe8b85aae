// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

/*
Package api exposes the narration pipeline over HTTP using the Chi router.

Endpoints:

	POST /api/analyzeimage   multipart upload (image, language) -> {results, response, imgurl}
	POST /api/translate      {text, language, originalContent?} -> {text, language, audio?, audioError?}
	GET  /api/languages      translator language catalog, passed through verbatim
	GET  /api/health/live    liveness probe
	GET  /api/health/ready   readiness probe (store, translator, speech)
	GET  /metrics            Prometheus exposition

Middleware order (outermost first):

 1. RequestID: X-Request-ID in/out, request and correlation IDs in the logging context
 2. RealIP and Recoverer from chi/middleware
 3. CORS (go-chi/cors), global so that preflight requests are answered
 4. APISecurityHeaders
 5. PrometheusMetrics, labelled by route pattern
 6. per-IP rate limiting (go-chi/httprate) on /api/* except health probes
 7. gzip Compression

Errors are rendered as {error, code, request_id}. The mapping from Go errors
to status codes lives in statusForError.
*/
package api
