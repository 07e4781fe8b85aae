// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package api

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/guidepost/internal/logging"
)

// DefaultCheckTimeout bounds each readiness probe when HealthCheck.Timeout is zero.
const DefaultCheckTimeout = 3 * time.Second

// HealthCheck is one readiness probe. A failing Critical check makes the
// service not ready (503); other failures only mark it degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    func(ctx context.Context) error
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	OK        bool   `json:"ok"`
	Critical  bool   `json:"critical"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// ReadinessResponse is the body of GET /api/health/ready.
type ReadinessResponse struct {
	Status string                 `json:"status"` // ready, degraded, not_ready
	Checks map[string]CheckResult `json:"checks"`
	Uptime float64                `json:"uptime"`
}

// HealthLive returns 200 while the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// RunChecks runs every check concurrently, each under its own timeout.
// Results are in the order of checks.
func RunChecks(ctx context.Context, checks []HealthCheck) []CheckResult {
	results := make([]CheckResult, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = runCheck(ctx, check)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// HealthReady reports 503 when a critical check fails and "degraded" when
// only non-critical ones do.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	results := RunChecks(r.Context(), h.checks)

	resp := ReadinessResponse{
		Status: "ready",
		Checks: make(map[string]CheckResult, len(h.checks)),
		Uptime: time.Since(h.startTime).Seconds(),
	}
	statusCode := http.StatusOK
	for i, check := range h.checks {
		res := results[i]
		resp.Checks[check.Name] = res
		if res.OK {
			continue
		}
		if check.Critical {
			resp.Status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		} else if resp.Status == "ready" {
			resp.Status = "degraded"
		}
	}

	if statusCode != http.StatusOK {
		logging.Ctx(r.Context()).Warn().Interface("checks", resp.Checks).Msg("Readiness check failed")
	}
	respondJSON(w, statusCode, resp)
}

func runCheck(parent context.Context, check HealthCheck) CheckResult {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	err := check.Probe(ctx)
	res := CheckResult{
		OK:        err == nil,
		Critical:  check.Critical,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
