// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package imagestore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/guidepost/internal/validation"
)

// SeedFile is the YAML layout accepted by Import:
//
//	images:
//	  - title: Taipei 101
//	    url: https://img.example.com/taipei101.jpg
//	    contentType: image/jpeg
type SeedFile struct {
	Images []Record `yaml:"images"`
}

// Import loads records from a YAML seed file and returns how many were stored.
func (s *Store) Import(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied seed path
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	n, err := s.ImportYAML(ctx, data)
	if err != nil {
		return n, fmt.Errorf("seed file %s: %w", path, err)
	}
	return n, nil
}

// ImportYAML validates every record before storing any of them.
func (s *Store) ImportYAML(ctx context.Context, data []byte) (int, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed: %w", err)
	}

	for i := range seed.Images {
		if verr := validation.ValidateStruct(&seed.Images[i]); verr != nil {
			return 0, fmt.Errorf("image %d (%q): %w", i, seed.Images[i].Title, verr)
		}
	}

	for i, rec := range seed.Images {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.Put(ctx, rec); err != nil {
			return i, fmt.Errorf("store image %q: %w", rec.Title, err)
		}
	}
	return len(seed.Images), nil
}
