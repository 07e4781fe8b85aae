// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package imagestore keeps the attraction image metadata in BadgerDB: one
// JSON record per attraction title, keyed case-insensitively.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
)

const keyPrefix = "image:"

var (
	// ErrNotFound means no record exists for the title.
	ErrNotFound = errors.New("image metadata not found")

	// ErrMetadataLookupFailure wraps any failure to read a record.
	ErrMetadataLookupFailure = errors.New("image metadata lookup failed")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("image store is closed")
)

// Record is the stored metadata of one attraction image.
type Record struct {
	Title       string    `json:"title" yaml:"title" validate:"required,max=256"`
	URL         string    `json:"url" yaml:"url" validate:"required,http_url"`
	ContentType string    `json:"contentType,omitempty" yaml:"contentType" validate:"omitempty,max=128"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// Config configures Open.
type Config struct {
	Path           string
	InMemory       bool
	GCDiscardRatio float64
}

// Store is a BadgerDB-backed metadata store. Safe for concurrent use.
type Store struct {
	db           *badger.DB
	discardRatio float64
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}
	opts := badger.DefaultOptions(path).WithInMemory(cfg.InMemory).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open image store: %w", err)
	}

	ratio := cfg.GCDiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Image store opened")

	return &Store{db: db, discardRatio: ratio, now: time.Now}, nil
}

// Key returns the storage key for a title.
func Key(title string) []byte {
	return []byte(keyPrefix + strings.ToLower(strings.TrimSpace(title)))
}

// Put stores rec, stamping UpdatedAt.
func (s *Store) Put(_ context.Context, rec Record) error {
	if strings.TrimSpace(rec.Title) == "" {
		return errors.New("image record needs a title")
	}
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	rec.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal image record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(Key(rec.Title), data)
	})
}

// Get reads the record for title, ignoring case. Missing records return ErrNotFound.
func (s *Store) Get(_ context.Context, title string) (*Record, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	var rec Record
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(title))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record for title. Deleting a missing record is not an error.
func (s *Store) Delete(_ context.Context, title string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(Key(title))
	})
}

// Count returns the number of records.
func (s *Store) Count(_ context.Context) (int, error) {
	release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	n := 0
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Ping checks that the store can serve reads.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.Get(ctx, "__ping__")
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// RunGC reclaims value log space until nothing is left to rewrite and
// returns the number of value log files rewritten.
func (s *Store) RunGC() (int, error) {
	release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	rewrites := 0
	for {
		err := s.db.RunValueLogGC(s.discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return rewrites, nil
		}
		if err != nil {
			return rewrites, fmt.Errorf("run value log GC: %w", err)
		}
		rewrites++
	}
}

// Close closes the database. Further calls return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// acquire holds the read lock until release is called, so Close waits for
// in-flight operations instead of closing the database under them.
func (s *Store) acquire() (release func(), err error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	return s.mu.RUnlock, nil
}

// ResolveImageURL returns the image URL recorded for title, or "" when there is
// none. Lookup errors are logged and also yield "".
func (s *Store) ResolveImageURL(ctx context.Context, title string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}
	rec, err := s.Get(ctx, title)
	switch {
	case err == nil:
		metrics.RecordImageLookup("hit")
		return rec.URL
	case errors.Is(err, ErrNotFound):
		metrics.RecordImageLookup("miss")
		return ""
	default:
		metrics.RecordImageLookup("error")
		logging.Ctx(ctx).Warn().
			Err(fmt.Errorf("%w: %w", ErrMetadataLookupFailure, err)).
			Str("title", title).
			Msg("Image lookup failed")
		return ""
	}
}
