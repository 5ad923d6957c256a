package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// RecognizerFallback implements [stt.Recognizer] with failover across
// several recognition backends, each behind its own circuit breaker. All
// members must accept the same sample rate.
type RecognizerFallback struct {
	group   *FallbackGroup[stt.Recognizer]
	rate    int
	attempt time.Duration
}

// errCallerDone marks a member failure that happened because the caller's
// context ended. It is neither the member's fault nor worth retrying.
var errCallerDone = errors.New("resilience: caller context done")

var (
	_ stt.Recognizer = (*RecognizerFallback)(nil)
	_ stt.Namer      = (*RecognizerFallback)(nil)
)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend. Empty-audio rejections and failures caused by the
// caller's context ending never count against a breaker.
func NewRecognizerFallback(primary stt.Recognizer, cfg FallbackConfig) *RecognizerFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = recognizerFailure
	}
	return &RecognizerFallback{
		group:   NewFallbackGroup(primary, stt.NameOf(primary), cfg),
		rate:    primary.SampleRate(),
		attempt: cfg.AttemptTimeout,
	}
}

func recognizerFailure(err error) bool {
	return countsAsFailure(err) && !errors.Is(err, stt.ErrEmptyAudio) && !errors.Is(err, errCallerDone)
}

// stopChain ends failover for errors another backend would repeat.
func stopChain(err error) bool {
	return errors.Is(err, stt.ErrEmptyAudio) || errors.Is(err, context.Canceled) || errors.Is(err, errCallerDone)
}

// AddFallback registers another recognizer. It fails when the recognizer's
// sample rate differs from the primary's.
func (f *RecognizerFallback) AddFallback(r stt.Recognizer) error {
	if r.SampleRate() != f.rate {
		return fmt.Errorf("resilience: fallback %s expects %d Hz, primary expects %d Hz",
			stt.NameOf(r), r.SampleRate(), f.rate)
	}
	f.group.AddFallback(stt.NameOf(r), r)
	return nil
}

// Transcribe sends the utterance to the first healthy backend and moves on
// to the next one when it fails. Once ctx is done the chain stops and no
// breaker records the outcome.
func (f *RecognizerFallback) Transcribe(ctx context.Context, samples []int16) (stt.Transcript, error) {
	tr, served, err := Execute(f.group, stopChain, func(r stt.Recognizer) (stt.Transcript, error) {
		if err := ctx.Err(); err != nil {
			return stt.Transcript{}, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		actx := ctx
		if f.attempt > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, f.attempt)
			defer cancel()
		}
		tr, err := r.Transcribe(actx, samples)
		if err != nil && ctx.Err() != nil {
			return tr, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return tr, err
	})
	if err == nil && served != f.group.entries[0].name {
		slog.Info("utterance served by fallback recognizer", "provider", served)
	}
	return tr, err
}

// SampleRate implements [stt.Recognizer].
func (f *RecognizerFallback) SampleRate() int { return f.rate }

// Name lists the members in failover order, e.g. "whisper>deepgram".
func (f *RecognizerFallback) Name() string {
	names := make([]string, f.group.Len())
	for i := range f.group.entries {
		names[i] = f.group.entries[i].name
	}
	return strings.Join(names, ">")
}

// Status reports the breaker state of every member.
func (f *RecognizerFallback) Status() []EntryStatus { return f.group.Status() }

// Available reports whether any member would currently accept a call.
func (f *RecognizerFallback) Available() bool { return f.group.Available() }
