// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

package speech

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/tomtom215/guidepost/internal/locale"
	"github.com/tomtom215/guidepost/internal/logging"
	"github.com/tomtom215/guidepost/internal/metrics"
)

var (
	// ErrSpeechTimeout means synthesis did not finish within the narrator timeout.
	ErrSpeechTimeout = errors.New("speech synthesis timed out")

	// ErrSpeechSynthesisFailure means the service canceled the synthesis.
	ErrSpeechSynthesisFailure = errors.New("speech synthesis failed")
)

// ContentType of every AudioPayload.
const ContentType = "audio/mp3"

// DefaultTimeout bounds a synthesis call.
const DefaultTimeout = 30 * time.Second

// AudioPayload is synthesized audio ready for the response.
type AudioPayload struct {
	Content     []byte
	ContentType string
	DurationMs  int64
	SizeBytes   int
}

// Narrator voices text in a locale. Safe for concurrent use; per-call
// settings travel in the Request value.
type Narrator struct {
	synth   Synthesizer
	timeout time.Duration
	format  string
}

// NewNarrator wraps synth. A non-positive timeout uses DefaultTimeout.
func NewNarrator(synth Synthesizer, timeout time.Duration, format string) *Narrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if format == "" {
		format = DefaultOutputFormat
	}
	return &Narrator{synth: synth, timeout: timeout, format: format}
}

// Synthesize voices text with the locale's voice.
//
// The synthesizer runs in its own goroutine and races a timer. When the timer
// fires first the call is canceled and ErrSpeechTimeout is returned.
func (n *Narrator) Synthesize(ctx context.Context, text string, loc locale.CanonicalLocale) (AudioPayload, error) {
	if !loc.HasVoice() {
		metrics.RecordSpeechOutcome("unsupported", 0)
		return AudioPayload{}, fmt.Errorf("%w: no voice for %q", locale.ErrUnsupportedLocale, loc.TranslationCode)
	}

	req := Request{
		Text:   text,
		Voice:  Voice{Language: loc.SpeechLanguage, Name: loc.SpeechVoice},
		Format: n.format,
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- n.synth.Synthesize(callCtx, req)
	}()

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	log := logging.Ctx(ctx)
	select {
	case <-timer.C:
		cancel()
		metrics.RecordSpeechOutcome("timeout", 0)
		log.Warn().Dur("timeout", n.timeout).Str("voice", req.Voice.Name).Msg("Speech synthesis timed out")
		return AudioPayload{}, fmt.Errorf("%w after %s", ErrSpeechTimeout, n.timeout)

	case <-ctx.Done():
		metrics.RecordSpeechOutcome(Errored.String(), 0)
		return AudioPayload{}, ctx.Err()

	case res := <-done:
		switch res.Outcome {
		case Completed:
			metrics.RecordSpeechOutcome(Completed.String(), len(res.Audio))
			log.Debug().
				Str("voice", req.Voice.Name).
				Int("text_length", len(text)).
				Int("audio_bytes", len(res.Audio)).
				Msg("Speech synthesized")
			return AudioPayload{
				Content:     res.Audio,
				ContentType: ContentType,
				DurationMs:  DurationMs(len(res.Audio), n.format),
				SizeBytes:   len(res.Audio),
			}, nil
		case Canceled:
			metrics.RecordSpeechOutcome(Canceled.String(), 0)
			log.Warn().Str("reason", res.Reason).Str("details", res.Details).Msg("Speech synthesis canceled")
			return AudioPayload{}, fmt.Errorf("%w: %s - %s", ErrSpeechSynthesisFailure, res.Reason, res.Details)
		default:
			metrics.RecordSpeechOutcome(Errored.String(), 0)
			if res.Err == nil {
				res.Err = errors.New("synthesizer reported an error without a cause")
			}
			return AudioPayload{}, res.Err
		}
	}
}

var bitrateRe = regexp.MustCompile(`(\d+)kbitrate`)

// BitsPerSecond reads the bitrate from an output format name (32 kbit/s when absent).
func BitsPerSecond(format string) int {
	if m := bitrateRe.FindStringSubmatch(format); m != nil {
		if kbit, err := strconv.Atoi(m[1]); err == nil && kbit > 0 {
			return kbit * 1000
		}
	}
	return 32000
}

// DurationMs derives playback length from the payload size of a constant-bitrate stream.
func DurationMs(size int, format string) int64 {
	return int64(size) * 8 * 1000 / int64(BitsPerSecond(format))
}
