// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/guidepost/internal/metrics"
)

var (
	// ErrAnalysisFailure is a failed submission or a job the service marked failed.
	ErrAnalysisFailure = errors.New("image analysis failed")

	// ErrAnalysisTimedOut means the job did not settle within the poll budget.
	ErrAnalysisTimedOut = fmt.Errorf("%w: job did not complete in time", ErrAnalysisFailure)
)

// errStillRunning keeps the poll loop going.
var errStillRunning = errors.New("analysis still running")

// Analyze submits image and waits for the label. An empty label with a nil
// error means the service found nothing to identify.
//
// Polling happens at a fixed interval and stops after the configured number
// of attempts (ErrAnalysisTimedOut) or when ctx ends.
func (c *Client) Analyze(ctx context.Context, image []byte) (string, error) {
	job, err := c.Submit(ctx, image)
	if err != nil {
		return "", err
	}

	label, err := c.Wait(ctx, job)
	if err != nil {
		return "", err
	}
	return label, nil
}

// Wait polls job until it succeeds, fails or runs out of attempts.
func (c *Client) Wait(ctx context.Context, job *Job) (string, error) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if err := c.Refresh(ctx, job); err != nil {
			return "", backoff.Permanent(err)
		}
		switch job.Status {
		case StatusSucceeded:
			return job.ResultLabel, nil
		case StatusFailed:
			return "", backoff.Permanent(fmt.Errorf("%w: %s", ErrAnalysisFailure, job.FailureReason))
		default:
			return "", errStillRunning
		}
	}

	// The first poll waits one interval: a freshly submitted job is never done.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), uint64(c.maxAttempts-1)),
		ctx,
	)
	if err := sleepCtx(ctx, c.pollInterval); err != nil {
		return "", err
	}

	label, err := backoff.RetryWithData(op, policy)
	metrics.RecordAnalysisPolls(attempts)

	switch {
	case err == nil:
		c.logger.Debug().
			Int("polls", attempts).
			Bool("identified", label != "").
			Float64("confidence", job.Confidence).
			Msg("Analysis completed")
		return label, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, errStillRunning):
		job.Status = StatusTimedOut
		c.logger.Warn().Int("polls", attempts).Str("handle", job.OperationHandle).Msg("Analysis timed out")
		return "", ErrAnalysisTimedOut
	default:
		c.logger.Warn().Int("polls", attempts).Err(err).Msg("Analysis failed")
		return "", err
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
