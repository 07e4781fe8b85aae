// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/guidepost/internal/imagestore"
	"github.com/tomtom215/guidepost/internal/metrics"
)

// scriptedGC returns queued results, then "nothing to rewrite".
type scriptedGC struct {
	mu      sync.Mutex
	results []gcResult
	calls   int
}

type gcResult struct {
	rewrites int
	err      error
}

func (s *scriptedGC) RunGC() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return 0, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.rewrites, r.err
}

func (s *scriptedGC) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestImageStoreGCService_Interface(t *testing.T) {
	var _ suture.Service = (*ImageStoreGCService)(nil)
	var _ GCRunner = (*imagestore.Store)(nil)
}

func TestNewImageStoreGCService_DefaultInterval(t *testing.T) {
	svc := NewImageStoreGCService(&scriptedGC{}, 0)
	if svc.interval != 10*time.Minute {
		t.Errorf("interval = %v, want 10m", svc.interval)
	}
	if svc.String() != "image-store-gc" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestImageStoreGCService_RunOnceRecordsResult(t *testing.T) {
	tests := []struct {
		name   string
		result gcResult
		label  string
	}{
		{"rewrote files", gcResult{rewrites: 2}, "rewritten"},
		{"nothing to do", gcResult{}, "nothing"},
		{"failure", gcResult{rewrites: 1, err: errors.New("disk full")}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.ImageStoreGCRuns.WithLabelValues(tt.label))

			svc := NewImageStoreGCService(&scriptedGC{results: []gcResult{tt.result}}, time.Minute)
			svc.runOnce()

			if got := testutil.ToFloat64(metrics.ImageStoreGCRuns.WithLabelValues(tt.label)) - before; got != 1 {
				t.Errorf("%s delta = %v, want 1", tt.label, got)
			}
		})
	}
}

func TestImageStoreGCService_Serve(t *testing.T) {
	gc := &scriptedGC{results: []gcResult{{err: errors.New("transient")}}}
	svc := NewImageStoreGCService(gc, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for gc.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if gc.callCount() < 3 {
		t.Fatalf("RunGC called %d times, want at least 3 (a failed cycle must not stop the loop)", gc.callCount())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestImageStoreGCService_RealStore(t *testing.T) {
	store, err := imagestore.Open(imagestore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	before := testutil.ToFloat64(metrics.ImageStoreGCRuns.WithLabelValues("nothing"))
	NewImageStoreGCService(store, time.Minute).runOnce()
	if got := testutil.ToFloat64(metrics.ImageStoreGCRuns.WithLabelValues("nothing")) - before; got < 1 {
		t.Errorf("in-memory GC should count as nothing, delta = %v", got)
	}
}
