// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

// Package breaker wraps sony/gobreaker with Guidepost logging and metrics.
// Every collaborator client runs its remote calls through one Breaker.
//
// The breaker uses real time for its interval and timeout. Tests drive it with
// failing functions rather than mocking the clock.
package breaker

import (
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
)

// ErrOpen wraps every rejection; the gobreaker cause stays in the chain.
var ErrOpen = errors.New("circuit breaker open")

// Settings configures a Breaker. Zero fields take the defaults below.
type Settings struct {
	Name string

	// MaxRequests is the number of probes allowed while half-open (default 3).
	MaxRequests uint32

	// Interval resets the counts while closed (default 1m).
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing (default 30s).
	Timeout time.Duration

	// MinRequests must be seen before the failure ratio is considered (default 10).
	MinRequests uint32

	// FailureRatio at or above which the breaker opens (default 0.6).
	FailureRatio float64

	// IsSuccessful decides whether an error counts against the breaker.
	// nil counts every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

func (s *Settings) applyDefaults() {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}
}

// Breaker is a named circuit breaker.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

// New creates a breaker and initializes its metrics as closed.
func New(settings Settings) *Breaker {
	settings.applyDefaults()
	name := settings.Name
	log := logging.WithComponent("breaker")

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:         name,
		MaxRequests:  settings.MaxRequests,
		Interval:     settings.Interval,
		Timeout:      settings.Timeout,
		IsSuccessful: settings.IsSuccessful,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= settings.FailureRatio
			if shouldTrip {
				log.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			log.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Name returns the breaker name used in logs and metric labels.
func (b *Breaker) Name() string {
	return b.name
}

// State returns closed, half-open or open.
func (b *Breaker) State() string {
	return stateToString(b.cb.State())
}

// Execute runs fn under breaker protection. Rejected calls return an error
// for which IsRejected is true; fn is not called.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if IsRejected(err) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			metrics.RecordCollaboratorRejected(b.name)
			logging.Warn().Str("breaker", b.name).Err(err).Msg("Request rejected")
			return nil, fmt.Errorf("%s: %w: %w", b.name, ErrOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// Do runs a typed call through the breaker.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	return castResult[T](b.Execute(func() (interface{}, error) {
		return fn()
	}))
}

// castResult type-checks the breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		// fn may have returned a partial value alongside the error.
		if typed, ok := result.(T); ok {
			return typed, err
		}
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// IsRejected reports whether err came from an open or saturated breaker.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
