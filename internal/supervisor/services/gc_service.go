// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package services

import (
	"context"
	"time"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
)

// GCRunner is satisfied by *imagestore.Store.
type GCRunner interface {
	RunGC() (int, error)
}

// ImageStoreGCService reclaims Badger value log space on a fixed interval.
//
// A failed cycle is logged and counted but does not stop the loop; the store
// stays usable and the next tick tries again.
type ImageStoreGCService struct {
	store    GCRunner
	interval time.Duration
	name     string
}

// NewImageStoreGCService runs store.RunGC every interval. A non-positive
// interval means 10m.
func NewImageStoreGCService(store GCRunner, interval time.Duration) *ImageStoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ImageStoreGCService{
		store:    store,
		interval: interval,
		name:     "image-store-gc",
	}
}

// Serve implements suture.Service.
func (s *ImageStoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *ImageStoreGCService) runOnce() {
	rewrites, err := s.store.RunGC()
	switch {
	case err != nil:
		metrics.RecordImageStoreGC("error")
		logging.Warn().Err(err).Int("rewrites", rewrites).Msg("Image store GC failed")
	case rewrites > 0:
		metrics.RecordImageStoreGC("rewritten")
		logging.Debug().Int("rewrites", rewrites).Msg("Image store GC reclaimed value log files")
	default:
		metrics.RecordImageStoreGC("nothing")
	}
}

// String names the service in supervisor events.
func (s *ImageStoreGCService) String() string {
	return s.name
}
