// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package remote

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxRetryDelay caps both computed delays and server Retry-After hints.
const maxRetryDelay = 20 * time.Second

func newRetryPolicy(base time.Duration, maxRetries int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.2
	exp.MaxInterval = maxRetryDelay
	exp.MaxElapsedTime = 0
	exp.Reset()
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(maxRetries))
}

// retryAfterBackOff stretches the next interval to a server Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	pending time.Duration
}

func (b *retryAfterBackOff) hint(d time.Duration) {
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	b.pending = d
}

// NextBackOff returns the larger of the wrapped interval and the pending hint.
func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.pending > next {
		next = b.pending
	}
	b.pending = 0
	return next
}
